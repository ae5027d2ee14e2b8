package ports

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Amund211/blockfinder/internal/app"
	"github.com/Amund211/blockfinder/internal/logging"
	"github.com/Amund211/blockfinder/internal/ratelimiting"
	"github.com/Amund211/blockfinder/internal/reporting"
)

const defaultHistoryLimit = 20

func MakeGetBlockHistoryHandler(
	getBlockHistory app.GetBlockHistory,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("history"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("history"),
		BuildCORSMiddleware(allowedOrigins),
		newIPRateLimitMiddleware(ratelimiting.RefillPerSecond(1), ratelimiting.BurstSize(60)),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, block, err := normalizeBlockFromPath(r)
		if err != nil {
			writeErrorResponse(ctx, w, http.StatusBadRequest, "invalid block")
			return
		}

		limit := defaultHistoryLimit
		if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
			limit, err = strconv.Atoi(rawLimit)
			if err != nil {
				writeErrorResponse(ctx, w, http.StatusBadRequest, "invalid limit")
				return
			}
		}

		sightings, err := getBlockHistory(ctx, block, limit)
		if errors.Is(err, app.ErrInvalidHistoryLimit) {
			writeErrorResponse(ctx, w, http.StatusBadRequest, "invalid limit")
			return
		} else if err != nil {
			// NOTE: GetBlockHistory implementations handle their own error reporting
			writeErrorResponse(ctx, w, http.StatusInternalServerError, "internal server error")
			return
		}

		response := historyResponse{
			Success:   true,
			Block:     block,
			Sightings: make([]sightingResponse, 0, len(sightings)),
		}
		for _, sighting := range sightings {
			response.Sightings = append(response.Sightings, sightingResponse{
				BusNumber: sighting.BusNumber,
				Location:  sighting.Location,
				Source:    sighting.Source,
				SeenAt:    sighting.SeenAt.Format(time.RFC3339),
			})
		}

		writeJSONResponse(ctx, w, http.StatusOK, response)
	}

	return middleware(handler)
}
