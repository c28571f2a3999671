package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webstorage/storectl/internal/constants"
	"github.com/webstorage/storectl/internal/logging"
)

func TestNewReadsStoredToken(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(constants.SessionTokenKey, "abc"))

	s, err := New(store, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "abc", s.Token())
	assert.True(t, s.IsAuthenticated())
}

func TestSetAndClearPersist(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	s, err := New(store, logging.NewNopLogger())
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated())

	require.NoError(t, s.Set("tok-1"))
	reloaded, err := New(store, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", reloaded.Token())

	require.NoError(t, s.Clear())
	assert.False(t, s.IsAuthenticated())
	_, ok, err := store.Get(constants.SessionTokenKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearIfCurrentIgnoresStaleEpoch(t *testing.T) {
	s, err := New(NewMemoryStore(), logging.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, s.Set("old"))
	_, epoch := s.snapshot()

	require.NoError(t, s.Set("new"))
	assert.False(t, s.clearIfCurrent(epoch))
	assert.Equal(t, "new", s.Token())

	_, epoch = s.snapshot()
	assert.True(t, s.clearIfCurrent(epoch))
	assert.Empty(t, s.Token())
}

func TestClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  42,
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	s, err := New(NewMemoryStore(), logging.NewNopLogger())
	require.NoError(t, err)

	_, err = s.Claims()
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, s.Set(token))
	claims, err := s.Claims()
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.True(t, claims.ExpiresAt.Equal(exp))
	assert.False(t, claims.Expired(time.Now()))
	assert.True(t, claims.Expired(exp.Add(time.Second)))
}

func TestClaimsRejectsGarbage(t *testing.T) {
	s, err := New(NewMemoryStore(), logging.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, s.Set("not-a-jwt"))

	_, err = s.Claims()
	assert.Error(t, err)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path)
	require.NoError(t, store.Set("a", "1"))
	require.NoError(t, store.Set("b", "2"))
	require.NoError(t, store.Delete("a"))

	v, ok, err := store.Get("b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	_, ok, err = store.Get("a")
	require.NoError(t, err)
	assert.False(t, ok)
}
