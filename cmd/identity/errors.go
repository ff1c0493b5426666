package identity

import (
	"errors"
	"strings"
)

// Error kinds. Callers match them with errors.Is; they never carry email
// addresses or hashes.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("account not found")
	ErrConflict     = errors.New("account already exists")
)

// OpError tags a repository failure with the operation and, for conflicts and
// rejected input, the logical field involved ("email", "id", "password_hash").
type OpError struct {
	Op    string
	Kind  error
	Field string
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Field != "" {
		b.WriteString(" (")
		b.WriteString(e.Field)
		b.WriteString(")")
	}
	return b.String()
}

func (e *OpError) Unwrap() error { return e.Kind }

func notFound(op string) error { return &OpError{Op: op, Kind: ErrNotFound} }

func invalid(op, field string) error { return &OpError{Op: op, Kind: ErrInvalidInput, Field: field} }

func conflict(op, field string) error { return &OpError{Op: op, Kind: ErrConflict, Field: field} }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
