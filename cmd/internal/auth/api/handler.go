package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"sessiond/cmd/internal/auth"
	"sessiond/cmd/internal/auth/session"
	"sessiond/cmd/internal/auth/tokens"
)

// Sessions is the orchestrator surface the handlers call. *auth.Service satisfies it.
type Sessions interface {
	Login(ctx context.Context, email, password string, meta session.Meta) (auth.LoginResult, error)
	Refresh(ctx context.Context, raw string, meta session.Meta) (auth.RefreshResult, error)
	Logout(ctx context.Context, accountID, raw string, meta session.Meta) error
	ChangePassword(ctx context.Context, accountID, current, next string, meta session.Meta) error
	RequestPasswordReset(ctx context.Context, email string, meta session.Meta) error
	ConfirmPasswordReset(ctx context.Context, raw, next string, meta session.Meta) error
	VerifyAccessToken(raw string) (tokens.Claims, error)
	RefreshTokenTTL() time.Duration
}

// Handler serves the auth JSON API.
type Handler struct {
	log *slog.Logger
	cfg Config
	svc Sessions
	ips *ipThrottle
	now func() time.Time
}

func NewHandler(log *slog.Logger, svc Sessions, cfg Config) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("authapi: nil session service")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.BasePath == "" {
		cfg.BasePath = DefaultConfig().BasePath
	}
	if cfg.RefreshCookieName == "" {
		cfg.RefreshCookieName = DefaultConfig().RefreshCookieName
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	if cfg.ResetRetryAfter <= 0 {
		cfg.ResetRetryAfter = DefaultConfig().ResetRetryAfter
	}
	h := &Handler{log: log, cfg: cfg, svc: svc, now: time.Now}
	if cfg.IPRate > 0 && cfg.IPBurst > 0 {
		ips, err := newIPThrottle(cfg.IPRate, cfg.IPBurst, cfg.IPMaxEntries)
		if err != nil {
			return nil, err
		}
		h.ips = ips
	}
	return h, nil
}

// Register wires auth routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	base := h.cfg.BasePath
	mux.HandleFunc("POST "+base+"/login", h.throttled(h.handleLogin))
	mux.HandleFunc("POST "+base+"/refresh", h.throttled(h.handleRefresh))
	mux.HandleFunc("POST "+base+"/logout", h.throttled(h.handleLogout))
	mux.HandleFunc("POST "+base+"/password", h.throttled(h.handleChangePassword))
	mux.HandleFunc("POST "+base+"/password-reset/request", h.throttled(h.handleResetRequest))
	mux.HandleFunc("POST "+base+"/password-reset/confirm", h.throttled(h.handleResetConfirm))
	mux.HandleFunc("GET "+base+"/me", h.throttled(h.handleMe))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.readJSON(w, r, &req) {
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password, h.requestMeta(r))
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	h.setRefreshCookie(w, res.RefreshToken, res.RefreshExpiresAt)
	respond(w, http.StatusOK, loginResponse{
		AccessToken:         res.AccessToken,
		ExpiresIn:           int64(res.AccessTokenTTL.Seconds()),
		ForcePasswordChange: res.ForcePasswordChange,
		User: userResponse{
			ID:       res.Account.ID,
			Email:    res.Account.Email,
			Role:     res.Account.Role,
			FullName: res.Account.FullName,
		},
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Refresh(r.Context(), h.refreshTokenFromCookie(r), h.requestMeta(r))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			h.clearRefreshCookie(w)
		}
		h.writeAuthError(w, err)
		return
	}
	h.setRefreshCookie(w, res.RefreshToken, res.RefreshExpiresAt)
	respond(w, http.StatusOK, refreshResponse{
		AccessToken: res.AccessToken,
		ExpiresIn:   int64(res.AccessTokenTTL.Seconds()),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}
	if err := h.svc.Logout(r.Context(), claims.Subject, h.refreshTokenFromCookie(r), h.requestMeta(r)); err != nil {
		h.writeAuthError(w, err)
		return
	}
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	err := h.svc.ChangePassword(r.Context(), claims.Subject, req.CurrentPassword, req.NewPassword, h.requestMeta(r))
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req.Email, h.requestMeta(r)); err != nil {
		h.writeAuthError(w, err)
		return
	}
	respond(w, http.StatusOK, messageResponse{Message: resetRequestedMessage})
}

func (h *Handler) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	if err := h.svc.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword, h.requestMeta(r)); err != nil {
		h.writeAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, meResponse{
		ID:          claims.Subject,
		Email:       claims.Email,
		Role:        claims.Role,
		Permissions: claims.Permissions,
		ExpiresAt:   claims.ExpiresAt.UTC(),
	})
}

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (tokens.Claims, bool) {
	raw := bearerToken(r)
	if raw == "" {
		fail(w, http.StatusUnauthorized, "invalid_token", "missing bearer token")
		return tokens.Claims{}, false
	}
	claims, err := h.svc.VerifyAccessToken(raw)
	if err != nil {
		fail(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return tokens.Claims{}, false
	}
	return claims, true
}

// writeAuthError maps the orchestrator's error kinds to responses. Causes are
// logged, never returned.
func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	switch auth.KindOf(err) {
	case auth.ErrInvalidCredentials:
		fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case auth.ErrAccountNotFound:
		fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case auth.ErrAccountLocked:
		fail(w, http.StatusLocked, "account_locked", "account temporarily locked")
	case auth.ErrRateLimited:
		writeRateLimited(w, 0)
	case auth.ErrInvalidToken:
		fail(w, http.StatusUnauthorized, "invalid_token", "invalid token")
	case auth.ErrInvalidOrExpiredToken:
		fail(w, http.StatusBadRequest, "invalid_token", "invalid or expired token")
	case auth.ErrValidation:
		fail(w, http.StatusBadRequest, "validation_error", validationMessage(err))
	default:
		if auth.IsRetryable(err) {
			w.Header().Set("Retry-After", strconv.FormatInt(int64(h.cfg.ResetRetryAfter.Seconds()), 10))
			fail(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
			return
		}
		h.log.Error("authapi.internal", "err", err)
		fail(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
