// Package tokens mints and verifies short-lived access tokens.
//
// Claims have a fixed shape (subject, email, role, permission set, issued-at,
// expiry) and are validated on every Verify. Two encodings are supported with
// the same symmetric key policy (at least 256 bits): HS256 JWT and PASETO
// v4.local. Every verification failure is reported as ErrInvalidToken.
package tokens
