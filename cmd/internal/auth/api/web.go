package authapi

import (
	"net/http"
	"strings"
	"time"
)

// refreshCookie builds the only carrier of the refresh token: HttpOnly and
// scoped to the auth base path. maxAge < 0 deletes it.
func (h *Handler) refreshCookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cfg.RefreshCookieName,
		Value:    value,
		Path:     h.cfg.BasePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	}
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, value string, exp time.Time) {
	ttl := int(h.svc.RefreshTokenTTL() / time.Second)
	age := int(time.Until(exp) / time.Second)
	if age <= 0 || age > ttl {
		age = ttl
	}
	http.SetCookie(w, h.refreshCookie(value, exp, age))
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, h.refreshCookie("", time.Unix(0, 0), -1))
}

func (h *Handler) refreshTokenFromCookie(r *http.Request) string {
	if c, err := r.Cookie(h.cfg.RefreshCookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
