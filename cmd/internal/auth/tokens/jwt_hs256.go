package tokens

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type jwtClaims struct {
	jwt.RegisteredClaims
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// JWTManager signs HS256 JWTs.
type JWTManager struct {
	key       []byte
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration
}

// NewJWTManager builds an HS256 manager.
func NewJWTManager(cfg Config) (*JWTManager, error) {
	cfg.Format = FormatJWT
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &JWTManager{
		key:       append([]byte(nil), cfg.Key...),
		issuer:    cfg.Issuer,
		ttl:       cfg.TTL,
		clockSkew: cfg.ClockSkew,
	}, nil
}

func (m *JWTManager) TTL() time.Duration { return m.ttl }

func (m *JWTManager) Issue(c Claims, now time.Time) (string, time.Time, error) {
	c.Permissions = NormalizePermissions(c.Permissions)
	if !c.validShape() {
		return "", time.Time{}, ErrInvalidToken
	}
	exp := now.Add(m.ttl)

	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   c.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:       c.Email,
		Role:        c.Role,
		Permissions: c.Permissions,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *JWTManager) Verify(token string, now time.Time) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > maxTokenLen {
		return Claims{}, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &jwtClaims{}, func(*jwt.Token) (any, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(m.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	jc, ok := parsed.Claims.(*jwtClaims)
	if !ok || jc.IssuedAt == nil {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		Subject:     jc.Subject,
		Email:       jc.Email,
		Role:        jc.Role,
		Permissions: jc.Permissions,
		IssuedAt:    jc.IssuedAt.Time,
		ExpiresAt:   jc.ExpiresAt.Time,
	}
	if !out.validShape() {
		return Claims{}, ErrInvalidToken
	}
	out.Permissions = NormalizePermissions(out.Permissions)
	return out, nil
}
