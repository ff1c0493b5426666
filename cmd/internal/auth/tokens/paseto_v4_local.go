package tokens

import (
	"strings"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

// PasetoManager issues PASETO v4.local (encrypted, symmetric) tokens.
type PasetoManager struct {
	key       paseto.V4SymmetricKey
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration
}

// NewPasetoManager builds a v4.local manager. The key must be exactly 32 bytes.
func NewPasetoManager(cfg Config) (*PasetoManager, error) {
	cfg.Format = FormatPaseto
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key, err := paseto.V4SymmetricKeyFromBytes(cfg.Key)
	if err != nil {
		return nil, ErrConfig
	}
	return &PasetoManager{
		key:       key,
		issuer:    cfg.Issuer,
		ttl:       cfg.TTL,
		clockSkew: cfg.ClockSkew,
	}, nil
}

func (m *PasetoManager) TTL() time.Duration { return m.ttl }

func (m *PasetoManager) Issue(c Claims, now time.Time) (string, time.Time, error) {
	c.Permissions = NormalizePermissions(c.Permissions)
	if !c.validShape() {
		return "", time.Time{}, ErrInvalidToken
	}
	exp := now.Add(m.ttl)

	tok := paseto.NewToken()
	tok.SetIssuer(m.issuer)
	tok.SetSubject(c.Subject)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(exp)
	tok.SetString("email", c.Email)
	tok.SetString("role", c.Role)
	if err := tok.Set("permissions", c.Permissions); err != nil {
		return "", time.Time{}, err
	}

	return tok.V4Encrypt(m.key, nil), exp, nil
}

func (m *PasetoManager) Verify(token string, now time.Time) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > maxTokenLen {
		return Claims{}, ErrInvalidToken
	}

	// Fresh parser per call so rules do not accumulate.
	p := paseto.NewParserWithoutExpiryCheck()
	p.AddRule(paseto.IssuedBy(m.issuer))

	parsed, err := p.ParseV4Local(m.key, token, nil)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	exp, err := parsed.GetExpiration()
	if err != nil || !now.Before(exp.Add(m.clockSkew)) {
		return Claims{}, ErrInvalidToken
	}
	iat, err := parsed.GetIssuedAt()
	if err != nil || iat.After(now.Add(m.clockSkew)) {
		return Claims{}, ErrInvalidToken
	}
	if nbf, err := parsed.GetNotBefore(); err != nil || nbf.After(now.Add(m.clockSkew)) {
		return Claims{}, ErrInvalidToken
	}

	var out Claims
	if out.Subject, err = parsed.GetSubject(); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if out.Email, err = parsed.GetString("email"); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if out.Role, err = parsed.GetString("role"); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if err := parsed.Get("permissions", &out.Permissions); err != nil {
		return Claims{}, ErrInvalidToken
	}
	out.IssuedAt = iat
	out.ExpiresAt = exp

	if !out.validShape() {
		return Claims{}, ErrInvalidToken
	}
	out.Permissions = NormalizePermissions(out.Permissions)
	return out, nil
}
