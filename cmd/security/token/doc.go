// Package token holds the opaque-secret half of the token codec.
//
// Raw secrets (refresh tokens, password reset tokens) are random bytes encoded
// as unpadded base64url. Only their fingerprint is ever stored:
//   - HMAC-SHA256(secret, key) when ARC_TOKEN_HMAC_KEY is configured,
//   - SHA-256(secret) otherwise (dev / migrated rows).
//
// Fingerprints are 64 hex characters and deterministic, so they double as the
// lookup key in every store.
package token
