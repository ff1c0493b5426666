// Package ratelimit is the per-key admission control in front of credential
// checks.
//
// Each (operation, normalized key) pair owns a token bucket. Refill is
// interval based: every full interval elapsed since the last refill adds
// RefillTokens, capped at Capacity. Buckets live in a BucketStore, in process
// memory by default or in Redis when several instances share limits.
package ratelimit
