package app

import (
	"errors"
	"fmt"

	"sessiond/cmd/security/token"
)

// securityFingerprinter builds the fingerprinter for stored refresh and reset
// tokens, enforcing ARC_REQUIRE_TOKEN_HMAC. Startup fails rather than falling
// back to plain SHA-256 when the policy is on.
func securityFingerprinter(cfg Config, log Logger) (token.Fingerprinter, error) {
	fp, err := token.FingerprinterFromEnv(cfg.RequireTokenHMAC)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return token.Fingerprinter{}, fmt.Errorf("%w: ARC_REQUIRE_TOKEN_HMAC=true but %s is missing", ErrConfig, token.HMACEnvKey)
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return token.Fingerprinter{}, fmt.Errorf("%w: ARC_REQUIRE_TOKEN_HMAC=true but %s is too short (min %d bytes)", ErrConfig, token.HMACEnvKey, token.MinHMACKeyBytes)
		default:
			return token.Fingerprinter{}, err
		}
	}
	if cfg.RequireTokenHMAC && !fp.Keyed() {
		return token.Fingerprinter{}, fmt.Errorf("%w: ARC_REQUIRE_TOKEN_HMAC=true but the fingerprinter is not keyed", ErrConfig)
	}
	if !fp.Keyed() {
		log.Warn("security.token_fingerprint.unkeyed", "hint", "set "+token.HMACEnvKey+" to key stored token fingerprints")
	}
	return fp, nil
}
