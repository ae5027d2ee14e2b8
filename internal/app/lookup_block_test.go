package app_test

import (
	"sync/atomic"
	"testing"

	"github.com/Amund211/blockfinder/internal/app"
	"github.com/Amund211/blockfinder/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestBlockOperations(t *testing.T) {
	t.Parallel()

	t.Run("lookup", func(t *testing.T) {
		t.Parallel()

		s := newSetup(t, 1)
		var calls atomic.Int64
		c := s.build(t, instantRefresh(s.clock.Now, &calls, nil), s.config())

		lookupBlock := app.BuildLookupBlock(c)

		result, err := lookupBlock(t.Context(), BLOCK)
		require.NoError(t, err)
		require.Equal(t, app.StatusReady, result.Status)
		require.Equal(t, BLOCK, result.Payload.Block)

		_, err = lookupBlock(t.Context(), "44-07;")
		require.Error(t, err)
		require.Equal(t, int64(1), calls.Load())
	})

	t.Run("lookup errors are passed through", func(t *testing.T) {
		t.Parallel()

		s := newSetup(t, 1)
		var calls atomic.Int64
		c := s.build(t, instantRefresh(s.clock.Now, &calls, domain.ErrBlockNotFound), s.config())

		_, err := app.BuildLookupBlock(c)(t.Context(), BLOCK)
		require.ErrorIs(t, err, domain.ErrBlockNotFound)
	})

	t.Run("poll and health", func(t *testing.T) {
		t.Parallel()

		s := newSetup(t, 1)
		var calls atomic.Int64
		c := s.build(t, instantRefresh(s.clock.Now, &calls, nil), s.config())

		pollBlockStatus := app.BuildPollBlockStatus(c)
		getHealth := app.BuildGetHealth(c)

		poll, err := pollBlockStatus(t.Context(), BLOCK)
		require.NoError(t, err)
		require.False(t, poll.Ready)
		require.Equal(t, app.Health{}, getHealth(t.Context()))

		_, err = app.BuildLookupBlock(c)(t.Context(), BLOCK)
		require.NoError(t, err)
		waitForIdle(t, c)

		poll, err = pollBlockStatus(t.Context(), BLOCK)
		require.NoError(t, err)
		require.True(t, poll.Ready)
		require.Equal(t, app.Health{Entries: 1}, getHealth(t.Context()))

		_, err = pollBlockStatus(t.Context(), "lowercase")
		require.Error(t, err)
	})
}
