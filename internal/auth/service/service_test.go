package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
	"github.com/luminara-labs/storefront-auth/internal/auth/store"
	"github.com/luminara-labs/storefront-auth/internal/auth/store/drivers/sqlite"
	"github.com/luminara-labs/storefront-auth/pkg/idx"
)

// newTestStore spins up a migrated in-memory database.
func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

// seedIdentity inserts a minimal identity and returns the stored row.
func seedIdentity(t *testing.T, st store.Store, email string) domain.Identity {
	t.Helper()

	ident, err := st.Identities().UpsertIdentity(context.Background(), domain.Identity{
		ExternalID:  "ext-" + idx.New().String(),
		Email:       email,
		DisplayName: "Test User",
	})
	require.NoError(t, err)
	return ident
}

// fakeVerifier is a stand-in for the external identity provider.
type fakeVerifier struct {
	externalID string
	password   string
	err        error
}

func (f *fakeVerifier) VerifyCredentials(_ context.Context, _, password string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	return f.externalID, password == f.password, nil
}
