package ports

import (
	"log/slog"
	"net/http"

	"github.com/Amund211/blockfinder/internal/app"
	"github.com/Amund211/blockfinder/internal/logging"
	"github.com/Amund211/blockfinder/internal/reporting"
)

func MakeHealthHandler(
	getHealth app.GetHealth,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("health"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("health"),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		health := getHealth(ctx)

		writeJSONResponse(ctx, w, http.StatusOK, healthResponse{
			Success:    true,
			QueueDepth: health.QueueDepth,
			ActiveJobs: health.ActiveJobs,
			InFlight:   health.InFlight,
			Entries:    health.Entries,
		})
	}

	return middleware(handler)
}
