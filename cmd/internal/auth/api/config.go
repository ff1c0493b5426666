package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls the HTTP surface: body limits, the refresh cookie and the
// coarse per-IP throttle in front of every auth endpoint.
type Config struct {
	BasePath     string
	TrustProxy   bool
	MaxBodyBytes int64

	RefreshCookieName string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite

	// IPRate is the sustained request rate per client IP, per second.
	IPRate       float64
	IPBurst      int
	IPMaxEntries int

	// ResetRetryAfter is advertised when a reset email could not be sent.
	ResetRetryAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		BasePath:          "/api/v1/auth",
		MaxBodyBytes:      16 << 10,
		RefreshCookieName: "refresh_token",
		CookieSecure:      true,
		CookieSameSite:    http.SameSiteStrictMode,
		IPRate:            1,
		IPBurst:           20,
		IPMaxEntries:      50_000,
		ResetRetryAfter:   30 * time.Second,
	}
}

// LoadConfigFromEnv loads API config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		BasePath:          envString("ARC_AUTH_BASE_PATH", def.BasePath),
		TrustProxy:        envBool("ARC_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:      envInt64("ARC_AUTH_MAX_BODY_BYTES", def.MaxBodyBytes),
		RefreshCookieName: envString("ARC_AUTH_REFRESH_COOKIE_NAME", def.RefreshCookieName),
		CookieDomain:      strings.TrimSpace(os.Getenv("ARC_AUTH_COOKIE_DOMAIN")),
		CookieSecure:      envBool("ARC_AUTH_COOKIE_SECURE", def.CookieSecure),
		CookieSameSite:    parseSameSite(envString("ARC_AUTH_COOKIE_SAMESITE", "strict")),
		IPRate:            envFloat("ARC_AUTH_IP_RATE", def.IPRate),
		IPBurst:           envInt("ARC_AUTH_IP_BURST", def.IPBurst),
		IPMaxEntries:      envInt("ARC_AUTH_IP_MAX_ENTRIES", def.IPMaxEntries),
		ResetRetryAfter:   envDuration("ARC_AUTH_RESET_RETRY_AFTER", def.ResetRetryAfter),
	}

	cfg.BasePath = "/" + strings.Trim(cfg.BasePath, "/")
	// Browsers drop SameSite=None cookies that are not Secure.
	if cfg.CookieSameSite == http.SameSiteNoneMode {
		cfg.CookieSecure = true
	}
	return cfg
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteStrictMode
	}
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
