package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/store/pgstore/pgtest"
)

// Integration tests are opt-in and require ARC_DATABASE_URL.
func TestService_Postgres_Integration(t *testing.T) {
	pool := pgtest.OpenPool(t)

	runServiceContract(t, func(t *testing.T) (Store, func(t *testing.T, email string) string) {
		schema := pgtest.NewSchema(t, pool)
		accounts, err := identity.NewPostgresStore(pool, identity.WithSchema(schema))
		require.NoError(t, err)
		s, err := NewPostgresStore(pool, WithSchema(schema))
		require.NoError(t, err)
		return s, accountMaker(accounts)
	})
}
