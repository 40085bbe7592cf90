package spotify

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteTokenStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteTokenStore(filepath.Join(t.TempDir(), "tokens.db"))
	require.NoError(t, err)
	defer store.Close()

	info, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, info, "empty store loads nothing")

	obtained := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(TokenInfo{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresIn:    3600,
		ObtainedAt:   obtained,
	}))

	info, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "at-1", info.AccessToken)
	assert.Equal(t, "rt-1", info.RefreshToken)
	assert.Equal(t, 3600, info.ExpiresIn)
	assert.True(t, info.ObtainedAt.Equal(obtained))

	// a later save overwrites the single row
	require.NoError(t, store.Save(TokenInfo{
		AccessToken:  "at-2",
		RefreshToken: "rt-2",
		ExpiresIn:    7200,
		ObtainedAt:   obtained.Add(time.Hour),
	}))

	info, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "at-2", info.AccessToken)
	assert.Equal(t, 7200, info.ExpiresIn)
}
