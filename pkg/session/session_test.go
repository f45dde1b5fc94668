package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraud-watch/pkg/api"
	"github.com/fraud-watch/pkg/api/apitest"
	"github.com/fraud-watch/pkg/db"
)

func setup(t *testing.T) (*apitest.Backend, *api.Client, *db.Store) {
	t.Helper()
	b := apitest.NewBackend()
	t.Cleanup(b.Close)
	store, err := db.NewStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return b, api.New(b.URL), store
}

func TestStore_LoginPersistsToken(t *testing.T) {
	b, client, store := setup(t)
	b.AddUser("ana@example.com", "s3cret-pass", "Ana")

	s := New(client, store)
	require.NoError(t, s.Login(context.Background(), "ana@example.com", "s3cret-pass"))

	assert.True(t, s.Authenticated())
	assert.Equal(t, "Ana", s.User().FullName)

	persisted, ok, err := store.Get(db.KeyAuthToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, s.Token(), persisted)
}

func TestStore_LoginRejected(t *testing.T) {
	b, client, store := setup(t)
	b.AddUser("ana@example.com", "s3cret-pass", "Ana")

	s := New(client, store)
	err := s.Login(context.Background(), "ana@example.com", "nope")
	var authErr *api.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Contains(t, err.Error(), "Incorrect email or password")
	assert.False(t, s.Authenticated())

	_, ok, err := store.Get(db.KeyAuthToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_RegisterThenLogin(t *testing.T) {
	_, client, store := setup(t)

	s := New(client, store)
	require.NoError(t, s.Register(context.Background(), "new@example.com", "long-enough", "Newbie"))
	assert.True(t, s.Authenticated())
	assert.Equal(t, "new@example.com", s.User().Email)
}

func TestStore_Logout(t *testing.T) {
	b, client, store := setup(t)
	b.AddUser("ana@example.com", "s3cret-pass", "Ana")

	s := New(client, store)
	require.NoError(t, s.Login(context.Background(), "ana@example.com", "s3cret-pass"))
	s.Logout()
	s.Logout() // unconditional

	assert.False(t, s.Authenticated())
	assert.Empty(t, s.Token())
	assert.Nil(t, s.User())
	_, ok, err := store.Get(db.KeyAuthToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_HydrateValidToken(t *testing.T) {
	b, client, store := setup(t)
	b.AddUser("ana@example.com", "s3cret-pass", "Ana")
	require.NoError(t, store.Set(db.KeyAuthToken, b.IssueToken("ana@example.com")))

	s := New(client, store)
	assert.True(t, s.Hydrate(context.Background()))
	assert.True(t, s.Authenticated())
	assert.Equal(t, "ana@example.com", s.User().Email)
}

func TestStore_HydrateExpiredTokenSignsOut(t *testing.T) {
	b, client, store := setup(t)
	b.AddUser("ana@example.com", "s3cret-pass", "Ana")
	tok := b.IssueToken("ana@example.com")
	b.RevokeToken(tok)
	require.NoError(t, store.Set(db.KeyAuthToken, tok))

	s := New(client, store)
	assert.False(t, s.Hydrate(context.Background()))
	assert.False(t, s.Authenticated())
	_, ok, err := store.Get(db.KeyAuthToken)
	require.NoError(t, err)
	assert.False(t, ok, "stale token must be discarded")
}

func TestStore_HydrateBackendDownKeepsToken(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(down.Close)
	_, _, store := setup(t)
	require.NoError(t, store.Set(db.KeyAuthToken, "still-valid"))

	s := New(api.New(down.URL), store)
	assert.False(t, s.Hydrate(context.Background()))
	assert.False(t, s.Authenticated())
	assert.Equal(t, "still-valid", s.Token(), "token still attached to requests")

	persisted, ok, err := store.Get(db.KeyAuthToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "still-valid", persisted)
}

func TestStore_HydrateWithoutToken(t *testing.T) {
	_, client, store := setup(t)
	s := New(client, store)
	assert.False(t, s.Hydrate(context.Background()))
}

func TestStore_IsTokenSource(t *testing.T) {
	var _ api.TokenSource = (*Store)(nil)
}
