package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/Amund211/blockfinder/internal/app"
	"github.com/Amund211/blockfinder/internal/domain"
	"github.com/Amund211/blockfinder/internal/domaintest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockedBlockProvider struct {
	t        *testing.T
	location domain.BlockLocation
	err      error
}

func (m *mockedBlockProvider) GetBlockLocation(ctx context.Context, block string) (domain.BlockLocation, error) {
	m.t.Helper()
	require.Equal(m.t, BLOCK, block)
	return m.location, m.err
}

type mockedSightingArchive struct {
	t      *testing.T
	stored []domain.BlockLocation
	err    error
}

func (m *mockedSightingArchive) StoreSightings(ctx context.Context, location domain.BlockLocation) error {
	m.t.Helper()

	_, ok := ctx.Deadline()
	require.True(m.t, ok, "archiving should be bounded")

	m.stored = append(m.stored, location)
	return m.err
}

func TestBuildRefreshAndArchiveBlock(t *testing.T) {
	t.Parallel()

	now := time.Now()

	t.Run("location is archived and returned", func(t *testing.T) {
		t.Parallel()

		location := domaintest.NewBlockLocationBuilder(BLOCK, now).WithBus("6698", "Storgata").Build()
		provider := &mockedBlockProvider{t: t, location: location}
		archive := &mockedSightingArchive{t: t}

		got, err := app.BuildRefreshAndArchiveBlock(provider, archive)(t.Context(), BLOCK)
		require.NoError(t, err)
		require.Equal(t, location, got)
		require.Equal(t, []domain.BlockLocation{location}, archive.stored)
	})

	t.Run("archive failures are ignored", func(t *testing.T) {
		t.Parallel()

		location := domaintest.NewBlockLocationBuilder(BLOCK, now).WithBus("6698", "Storgata").Build()
		provider := &mockedBlockProvider{t: t, location: location}
		archive := &mockedSightingArchive{t: t, err: assert.AnError}

		got, err := app.BuildRefreshAndArchiveBlock(provider, archive)(t.Context(), BLOCK)
		require.NoError(t, err)
		require.Equal(t, location, got)
	})

	t.Run("archiving outlives a cancelled context", func(t *testing.T) {
		t.Parallel()

		location := domaintest.NewBlockLocationBuilder(BLOCK, now).Build()
		provider := &mockedBlockProvider{t: t, location: location}
		archive := &mockedSightingArchive{t: t}

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		got, err := app.BuildRefreshAndArchiveBlock(provider, archive)(ctx, BLOCK)
		require.NoError(t, err)
		require.Equal(t, location, got)
		require.Len(t, archive.stored, 1)
	})

	t.Run("provider errors are passed through", func(t *testing.T) {
		t.Parallel()

		for _, providerErr := range []error{
			domain.ErrBlockNotFound,
			domain.ErrTemporarilyUnavailable,
			assert.AnError,
		} {
			provider := &mockedBlockProvider{t: t, err: providerErr}
			archive := &mockedSightingArchive{t: t}

			_, err := app.BuildRefreshAndArchiveBlock(provider, archive)(t.Context(), BLOCK)
			require.ErrorIs(t, err, providerErr)
			require.Empty(t, archive.stored)
		}
	})
}
