// Package session implements refresh-token families and the rotation protocol.
//
// Refresh tokens are opaque random strings. Only their fingerprint is stored
// (HMAC-SHA256 when ARC_TOKEN_HMAC_KEY is set, SHA-256 otherwise). Every login
// starts a new family; each successful rotation revokes the presented record
// and inserts its successor in the same family inside one store transaction.
// Presenting a revoked record is treated as theft and burns the whole family.
package session
