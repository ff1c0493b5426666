// Package auth is the session orchestrator. It composes the rate limiter,
// lockout tracker, refresh-token rotation and reset-token stores into the
// login, refresh, logout, password change and password reset flows.
//
// Every error returned by Service is an *Error whose Kind is one of the
// sentinels in this package. Callers map kinds to responses; the causes are
// for logs only.
package auth
