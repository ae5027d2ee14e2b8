package ports

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Amund211/blockfinder/internal/app"
	"github.com/Amund211/blockfinder/internal/domain"
	"github.com/Amund211/blockfinder/internal/logging"
	"github.com/Amund211/blockfinder/internal/ratelimiting"
	"github.com/Amund211/blockfinder/internal/reporting"
	"github.com/Amund211/blockfinder/internal/strutils"
)

func onLimitExceeded(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"success":false,"cause":"rate limit exceeded"}`))
}

func newIPRateLimitMiddleware(refillPerSecond ratelimiting.RefillPerSecond, burstSize ratelimiting.BurstSize) func(http.HandlerFunc) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(refillPerSecond, burstSize, time.Now)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)
	return NewRateLimitMiddleware(ipRateLimiter, onLimitExceeded)
}

// normalizeBlockFromPath adds the block to the logging and reporting meta
func normalizeBlockFromPath(r *http.Request) (context.Context, string, error) {
	ctx := r.Context()

	block, err := strutils.NormalizeBlock(r.PathValue("block"))
	if err != nil {
		return ctx, "", err
	}

	ctx = logging.WithBlock(ctx, block)
	ctx = reporting.AddExtrasToContext(ctx,
		map[string]string{
			"block": block,
		},
	)

	return ctx, block, nil
}

func MakeLookupBlockHandler(
	lookupBlock app.LookupBlock,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("lookup_block"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("lookup_block"),
		BuildCORSMiddleware(allowedOrigins),
		newIPRateLimitMiddleware(ratelimiting.RefillPerSecond(2), ratelimiting.BurstSize(120)),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, block, err := normalizeBlockFromPath(r)
		if err != nil {
			writeErrorResponse(ctx, w, http.StatusBadRequest, "invalid block")
			return
		}

		result, err := lookupBlock(ctx, block)
		if errors.Is(err, domain.ErrBlockNotFound) {
			writeErrorResponse(ctx, w, http.StatusNotFound, "not found")
			return
		} else if errors.Is(err, domain.ErrTemporarilyUnavailable) {
			writeErrorResponse(ctx, w, http.StatusServiceUnavailable, "temporarily unavailable")
			return
		} else if err != nil && ctx.Err() != nil {
			logging.FromContext(ctx).InfoContext(ctx, "Client left before the lookup finished")
			return
		} else if err != nil {
			// NOTE: LookupBlock implementations handle their own error reporting
			writeErrorResponse(ctx, w, http.StatusInternalServerError, "internal server error")
			return
		}

		if result.Status == app.StatusPending {
			retryAfterMs := result.RetryAfter.Milliseconds()
			w.Header().Set("Retry-After", retryAfterSeconds(result.RetryAfter))
			writeJSONResponse(ctx, w, http.StatusAccepted, pendingResponse{
				Success:      true,
				Status:       string(app.StatusPending),
				Block:        block,
				Pending:      true,
				RetryAfterMs: &retryAfterMs,
			})
			return
		}

		writeJSONResponse(ctx, w, http.StatusOK, makeReadyResponse(result.Payload, result.Cached, result.Stale, result.Age))
	}

	return middleware(handler)
}

func MakePollBlockStatusHandler(
	pollBlockStatus app.PollBlockStatus,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("poll_block_status"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("poll_block_status"),
		BuildCORSMiddleware(allowedOrigins),
		// Polling is cheap and expected to be frequent
		newIPRateLimitMiddleware(ratelimiting.RefillPerSecond(8), ratelimiting.BurstSize(480)),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, block, err := normalizeBlockFromPath(r)
		if err != nil {
			writeErrorResponse(ctx, w, http.StatusBadRequest, "invalid block")
			return
		}

		result, err := pollBlockStatus(ctx, block)
		if err != nil {
			// NOTE: PollBlockStatus implementations handle their own error reporting
			writeErrorResponse(ctx, w, http.StatusInternalServerError, "internal server error")
			return
		}

		if result.Ready {
			writeJSONResponse(ctx, w, http.StatusOK, makeReadyResponse(result.Payload, true, result.Stale, result.Age))
			return
		}

		if result.Pending {
			writeJSONResponse(ctx, w, http.StatusAccepted, pendingResponse{
				Success: true,
				Status:  string(app.StatusPending),
				Block:   block,
				Pending: true,
			})
			return
		}

		writeJSONResponse(ctx, w, http.StatusNotFound, pendingResponse{
			Success: false,
			Status:  "not_found",
			Block:   block,
			Pending: false,
		})
	}

	return middleware(handler)
}
