package util

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/itslogin/pkg/config"
	"github.com/mpapenbr/itslogin/pkg/session/factory"
)

func withSessionConfig(t *testing.T, storeType, dir, ttl string) {
	t.Helper()
	oldType, oldDir, oldTTL := config.SessionStore, config.SessionDir, config.SessionTTL
	config.SessionStore, config.SessionDir, config.SessionTTL = storeType, dir, ttl
	t.Cleanup(func() {
		config.SessionStore, config.SessionDir, config.SessionTTL = oldType, oldDir, oldTTL
	})
}

func TestNewSessionStore(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		withSessionConfig(t, "file", t.TempDir(), "")
		store, closer, err := NewSessionStore()
		require.NoError(t, err)
		defer closer()

		require.NoError(t, store.Set(context.Background(), "u-42"))
		got, err := store.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "u-42", got)
	})
	t.Run("memory", func(t *testing.T) {
		withSessionConfig(t, "memory", "", "1h")
		store, closer, err := NewSessionStore()
		require.NoError(t, err)
		defer closer()
		assert.NotNil(t, store)
	})
	t.Run("unsupported", func(t *testing.T) {
		withSessionConfig(t, "redis", "", "")
		_, _, err := NewSessionStore()
		assert.ErrorIs(t, err, factory.ErrStoreTypeNotSupported)
	})
	t.Run("invalid ttl", func(t *testing.T) {
		withSessionConfig(t, "memory", "", "soon")
		_, _, err := NewSessionStore()
		assert.Error(t, err)
	})
}
