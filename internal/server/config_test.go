package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServer_Config_Validate(t *testing.T) {
	t.Parallel()

	t.Run("missing logger", func(t *testing.T) {
		t.Parallel()
		cfg := Config{Manager: testManager(t)}
		require.Error(t, cfg.Validate())
	})

	t.Run("missing manager", func(t *testing.T) {
		t.Parallel()
		cfg := Config{Logger: testLogger(t)}
		require.Error(t, cfg.Validate())
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		cfg := Config{Logger: testLogger(t), Manager: testManager(t)}
		require.NoError(t, cfg.Validate())
		require.Equal(t, defaultReadHeaderTimeout, cfg.ReadHeaderTimeout)
		require.Equal(t, defaultShutdownTimeout, cfg.ShutdownTimeout)
		require.Equal(t, defaultQueryTimeout, cfg.QueryTimeout)
	})

	t.Run("explicit values kept", func(t *testing.T) {
		t.Parallel()
		cfg := Config{
			Logger:       testLogger(t),
			Manager:      testManager(t),
			QueryTimeout: time.Minute,
		}
		require.NoError(t, cfg.Validate())
		require.Equal(t, time.Minute, cfg.QueryTimeout)
	})
}
