// Package notify delivers account emails (password reset, lockout).
//
// Every call states its delivery Mode. BestEffort swallows and logs sender
// failures; Propagate returns them wrapped in ErrDelivery. Each send runs
// under its own timeout and never touches state the caller already committed.
package notify
