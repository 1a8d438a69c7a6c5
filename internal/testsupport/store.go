package testsupport

import (
	"context"
	"fmt"
	"testing"

	"tramita/internal/config"
	"tramita/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return st
}

// SeedUser inserts an active user into the directory and returns its id.
func SeedUser(t testing.TB, st *store.Store, id string, role store.Role, workspace store.Workspace) string {
	t.Helper()

	err := st.CreateUser(context.Background(), store.User{
		ID:        id,
		Name:      fmt.Sprintf("User %s", id),
		Role:      role,
		Workspace: workspace,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return id
}

// SeedInactiveUser inserts a user and immediately deactivates it.
func SeedInactiveUser(t testing.TB, st *store.Store, id string, role store.Role, workspace store.Workspace) string {
	t.Helper()

	SeedUser(t, st, id, role, workspace)
	if err := st.SetUserActive(context.Background(), id, false); err != nil {
		t.Fatalf("deactivate user %s: %v", id, err)
	}
	return id
}
