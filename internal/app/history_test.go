package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/Amund211/blockfinder/internal/app"
	"github.com/Amund211/blockfinder/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockedSightingHistory struct {
	t         *testing.T
	sightings []domain.Sighting
	err       error
	calls     int
}

func (m *mockedSightingHistory) GetSightings(ctx context.Context, block string, limit int) ([]domain.Sighting, error) {
	m.t.Helper()
	m.calls++
	require.Equal(m.t, BLOCK, block)
	return m.sightings, m.err
}

func TestBuildGetBlockHistory(t *testing.T) {
	t.Parallel()

	now := time.Now()

	t.Run("sightings are returned", func(t *testing.T) {
		t.Parallel()

		sightings := []domain.Sighting{
			{Block: BLOCK, BusNumber: "6698", Location: "Storgata", Source: "test", SeenAt: now},
			{Block: BLOCK, BusNumber: "6698", Location: "Jernbanetorget", Source: "test", SeenAt: now.Add(-time.Minute)},
		}
		repo := &mockedSightingHistory{t: t, sightings: sightings}

		got, err := app.BuildGetBlockHistory(repo)(t.Context(), BLOCK, 10)
		require.NoError(t, err)
		require.Equal(t, sightings, got)
	})

	t.Run("limit is validated", func(t *testing.T) {
		t.Parallel()

		for _, limit := range []int{-1, 0, app.MAX_HISTORY_LIMIT + 1} {
			repo := &mockedSightingHistory{t: t}

			_, err := app.BuildGetBlockHistory(repo)(t.Context(), BLOCK, limit)
			require.ErrorIs(t, err, app.ErrInvalidHistoryLimit)
			require.Equal(t, 0, repo.calls)
		}
	})

	t.Run("block must be normalized", func(t *testing.T) {
		t.Parallel()

		repo := &mockedSightingHistory{t: t}

		_, err := app.BuildGetBlockHistory(repo)(t.Context(), "44-07 ", 10)
		require.Error(t, err)
		require.Equal(t, 0, repo.calls)
	})

	t.Run("repository errors are passed through", func(t *testing.T) {
		t.Parallel()

		repo := &mockedSightingHistory{t: t, err: assert.AnError}

		_, err := app.BuildGetBlockHistory(repo)(t.Context(), BLOCK, 10)
		require.ErrorIs(t, err, assert.AnError)
	})
}
