package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Amund211/blockfinder/internal/app"
	"github.com/Amund211/blockfinder/internal/domain"
	"github.com/Amund211/blockfinder/internal/reporting"
)

type busResponse struct {
	Number    string   `json:"number"`
	Location  string   `json:"location"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type readyResponse struct {
	Success   bool          `json:"success"`
	Status    string        `json:"status"`
	Block     string        `json:"block"`
	Buses     []busResponse `json:"buses"`
	Source    string        `json:"source"`
	QueriedAt string        `json:"queriedAt"`
	Cached    bool          `json:"cached"`
	Stale     bool          `json:"stale"`
	AgeMs     int64         `json:"ageMs"`
}

type pendingResponse struct {
	Success      bool   `json:"success"`
	Status       string `json:"status"`
	Block        string `json:"block"`
	Pending      bool   `json:"pending"`
	RetryAfterMs *int64 `json:"retryAfterMs,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

type sightingResponse struct {
	BusNumber string `json:"busNumber"`
	Location  string `json:"location"`
	Source    string `json:"source"`
	SeenAt    string `json:"seenAt"`
}

type historyResponse struct {
	Success   bool               `json:"success"`
	Block     string             `json:"block"`
	Sightings []sightingResponse `json:"sightings"`
}

type healthResponse struct {
	Success    bool `json:"success"`
	QueueDepth int  `json:"queueDepth"`
	ActiveJobs int  `json:"activeJobs"`
	InFlight   int  `json:"inFlight"`
	Entries    int  `json:"entries"`
}

func writeJSONResponse(ctx context.Context, w http.ResponseWriter, statusCode int, response any) {
	data, err := json.Marshal(response)
	if err != nil {
		reporting.Report(ctx, fmt.Errorf("failed to marshal response: %w", err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"cause":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}

func writeErrorResponse(ctx context.Context, w http.ResponseWriter, statusCode int, cause string) {
	writeJSONResponse(ctx, w, statusCode, errorResponse{
		Success: false,
		Cause:   cause,
	})
}

func makeReadyResponse(location domain.BlockLocation, cached, stale bool, age time.Duration) readyResponse {
	buses := make([]busResponse, 0, len(location.Buses))
	for _, bus := range location.Buses {
		buses = append(buses, busResponse{
			Number:    bus.Number,
			Location:  bus.Location,
			Latitude:  bus.Latitude,
			Longitude: bus.Longitude,
		})
	}

	return readyResponse{
		Success:   true,
		Status:    string(app.StatusReady),
		Block:     location.Block,
		Buses:     buses,
		Source:    location.Source,
		QueriedAt: location.QueriedAt.Format(time.RFC3339),
		Cached:    cached,
		Stale:     stale,
		AgeMs:     age.Milliseconds(),
	}
}

// Retry-After only supports whole seconds
func retryAfterSeconds(retryAfter time.Duration) string {
	return strconv.FormatInt(int64(math.Ceil(retryAfter.Seconds())), 10)
}
