package blockprovider_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/Amund211/blockfinder/internal/adapters/blockprovider"
	"github.com/Amund211/blockfinder/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNewBlockProviderOrMock(t *testing.T) {
	newProvider := func(t *testing.T, env map[string]string) (blockprovider.BlockProvider, error) {
		t.Helper()
		for key, value := range env {
			t.Setenv(key, value)
		}

		conf, err := config.ConfigFromEnv()
		require.NoError(t, err)

		return blockprovider.NewBlockProviderOrMock(conf, http.DefaultClient, time.Now, time.After)
	}

	production := map[string]string{
		"BLOCKFINDER_ENVIRONMENT": "production",
		"CLOUDSQL_UNIX_SOCKET":    "socket",
		"DB_USERNAME":             "user",
		"DB_PASSWORD":             "password",
		"SENTRY_DSN":              "dsn",
	}

	t.Run("mock in development", func(t *testing.T) {
		provider, err := newProvider(t, map[string]string{"BLOCKFINDER_ENVIRONMENT": "development"})
		require.NoError(t, err)

		location, err := provider.GetBlockLocation(t.Context(), BLOCK)
		require.NoError(t, err)
		require.Equal(t, "mock", location.Source)
	})

	t.Run("missing upstream in production", func(t *testing.T) {
		_, err := newProvider(t, production)
		require.Error(t, err)
	})

	t.Run("transit api", func(t *testing.T) {
		t.Setenv("BLOCKFINDER_TRANSIT_API_URL", "https://transit.example.com")
		provider, err := newProvider(t, production)
		require.NoError(t, err)
		require.NotNil(t, provider)
	})

	t.Run("tracker page", func(t *testing.T) {
		t.Setenv("BLOCKFINDER_TRACKER_URL", "https://tracker.example.com")
		provider, err := newProvider(t, production)
		require.NoError(t, err)
		require.NotNil(t, provider)
	})
}

func TestMockedProvider(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.March, 3, 7, 30, 0, 0, time.UTC)
	provider := blockprovider.NewMockedProvider(func() time.Time { return now }, 0)

	first, err := provider.GetBlockLocation(t.Context(), BLOCK)
	require.NoError(t, err)
	second, err := provider.GetBlockLocation(t.Context(), BLOCK)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Len(t, first.Buses, 1)
	require.Equal(t, now, first.QueriedAt)
	require.Equal(t, BLOCK, first.Block)
}
