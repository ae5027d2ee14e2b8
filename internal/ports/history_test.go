package ports_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Amund211/blockfinder/internal/app"
	"github.com/Amund211/blockfinder/internal/domain"
	"github.com/Amund211/blockfinder/internal/ports"
	"github.com/stretchr/testify/require"
)

func TestMakeGetBlockHistoryHandler(t *testing.T) {
	t.Parallel()

	allowedOrigins, testLogger, noopMiddleware := newTestDependencies(t)

	makeHandler := func(t *testing.T, expectedLimit int, sightings []domain.Sighting, err error) (http.HandlerFunc, *bool) {
		called := false
		return ports.MakeGetBlockHistoryHandler(
			func(ctx context.Context, block string, limit int) ([]domain.Sighting, error) {
				t.Helper()
				require.Equal(t, BLOCK, block)
				require.Equal(t, expectedLimit, limit)
				called = true
				return sightings, err
			},
			allowedOrigins,
			testLogger,
			noopMiddleware,
		), &called
	}

	t.Run("sightings", func(t *testing.T) {
		t.Parallel()

		handler, called := makeHandler(t, 20, []domain.Sighting{
			{Block: BLOCK, BusNumber: "6698", Location: "Jernbanetorget", Source: "transit_api", SeenAt: queriedAt.Add(time.Minute)},
			{Block: BLOCK, BusNumber: "6698", Location: "Storgata", Source: "transit_api", SeenAt: queriedAt},
		}, nil)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeBlockRequest(BLOCK, "/history"))

		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{
			"success": true,
			"block": "44-07",
			"sightings": [
				{"busNumber": "6698", "location": "Jernbanetorget", "source": "transit_api", "seenAt": "2025-03-03T07:31:00Z"},
				{"busNumber": "6698", "location": "Storgata", "source": "transit_api", "seenAt": "2025-03-03T07:30:00Z"}
			]
		}`, w.Body.String())
		require.True(t, *called)
	})

	t.Run("no sightings", func(t *testing.T) {
		t.Parallel()

		handler, _ := makeHandler(t, 20, []domain.Sighting{}, nil)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeBlockRequest(BLOCK, "/history"))

		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"success":true,"block":"44-07","sightings":[]}`, w.Body.String())
	})

	t.Run("custom limit", func(t *testing.T) {
		t.Parallel()

		handler, called := makeHandler(t, 5, []domain.Sighting{}, nil)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeBlockRequest(BLOCK, "/history?limit=5"))

		require.Equal(t, http.StatusOK, w.Code)
		require.True(t, *called)
	})

	t.Run("unparseable limit", func(t *testing.T) {
		t.Parallel()

		handler, called := makeHandler(t, 0, nil, nil)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeBlockRequest(BLOCK, "/history?limit=many"))

		require.Equal(t, http.StatusBadRequest, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"invalid limit"}`, w.Body.String())
		require.False(t, *called)
	})

	t.Run("limit out of range", func(t *testing.T) {
		t.Parallel()

		handler, called := makeHandler(t, 1000, nil, fmt.Errorf("%w: too large", app.ErrInvalidHistoryLimit))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeBlockRequest(BLOCK, "/history?limit=1000"))

		require.Equal(t, http.StatusBadRequest, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"invalid limit"}`, w.Body.String())
		require.True(t, *called)
	})

	t.Run("archive error", func(t *testing.T) {
		t.Parallel()

		handler, _ := makeHandler(t, 20, nil, fmt.Errorf("failed to get sightings"))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeBlockRequest(BLOCK, "/history"))

		require.Equal(t, http.StatusInternalServerError, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"internal server error"}`, w.Body.String())
	})
}
