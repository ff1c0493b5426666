// Package password is the password hashing collaborator of the session layer.
//
// New hashes are Argon2id in PHC string form:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
//
// Verification also accepts bcrypt hashes ($2a$, $2b$, $2y$) carried over from
// accounts created before the Argon2id migration; NeedsRehash reports them so
// callers can upgrade on the next successful login.
//
// Hash strings are untrusted input during Verify: decoding is strict and
// parameters far above the configured cost are refused.
package password
