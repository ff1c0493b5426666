package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"sessiond/cmd/identity/ids"
)

// MemoryStore keeps accounts in process memory. It backs ARC_STORE=memory
// and the orchestrator tests; lock state is lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[string]*Account
	byEmail map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*Account),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "identity.Create"
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	in, err := prepareCreate(op, in)
	if err != nil {
		return Account{}, err
	}
	id, err := ids.NewULID(in.Now)
	if err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[in.Email]; ok {
		return Account{}, conflict(op, "email")
	}
	a := &Account{
		ID:                  id,
		Email:               in.Email,
		PasswordHash:        in.PasswordHash,
		Role:                in.Role,
		ForcePasswordChange: in.ForcePasswordChange,
		Active:              true,
		CreatedAt:           in.Now,
		UpdatedAt:           in.Now,
	}
	s.byID[id] = a
	s.byEmail[in.Email] = id
	return copyAccount(a), nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return Account{}, notFound("identity.FindByEmail")
	}
	return copyAccount(s.byID[id]), nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return Account{}, notFound("identity.FindByID")
	}
	return copyAccount(a), nil
}

func (s *MemoryStore) UpdatePassword(ctx context.Context, id, passwordHash string, clearForceChange bool, now time.Time) error {
	const op = "identity.UpdatePassword"
	if err := ctx.Err(); err != nil {
		return err
	}
	if passwordHash == "" {
		return invalid(op, "password_hash")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return notFound(op)
	}
	a.PasswordHash = passwordHash
	if clearForceChange {
		a.ForcePasswordChange = false
	}
	a.UpdatedAt = now
	return nil
}

func (s *MemoryStore) RecordFailedLogin(ctx context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (FailureState, error) {
	const op = "identity.RecordFailedLogin"
	if err := ctx.Err(); err != nil {
		return FailureState{}, err
	}
	if err := checkThreshold(op, threshold, lockFor); err != nil {
		return FailureState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return FailureState{}, notFound(op)
	}
	a.FailedAttempts++
	justLocked := a.FailedAttempts >= threshold && !a.IsLocked(now)
	if justLocked {
		until := now.Add(lockFor)
		a.LockedUntil = &until
	}
	a.UpdatedAt = now
	return FailureState{Attempts: a.FailedAttempts, LockedUntil: copyTime(a.LockedUntil), JustLocked: justLocked}, nil
}

func (s *MemoryStore) RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error {
	const op = "identity.RecordSuccessfulLogin"
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return notFound(op)
	}
	a.FailedAttempts = 0
	a.LockedUntil = nil
	ts := now
	a.LastLoginAt = &ts
	a.UpdatedAt = now
	return nil
}

// SetActive toggles the active flag. Used by tests and admin tooling.
func (s *MemoryStore) SetActive(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.byID[id]; ok {
		a.Active = active
	}
}

func copyAccount(a *Account) Account {
	out := *a
	out.LockedUntil = copyTime(a.LockedUntil)
	out.LastLoginAt = copyTime(a.LastLoginAt)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
