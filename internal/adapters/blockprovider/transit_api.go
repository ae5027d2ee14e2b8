package blockprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Amund211/blockfinder/internal/constants"
	"github.com/Amund211/blockfinder/internal/domain"
	"github.com/Amund211/blockfinder/internal/logging"
	"github.com/Amund211/blockfinder/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const transitAPISource = "transit_api"

type transitAPI struct {
	httpClient HttpClient
	baseURL    string
	apiKey     string
	nowFunc    func() time.Time

	metrics providerMetricsCollection
	tracer  trace.Tracer
}

func NewTransitAPI(httpClient HttpClient, baseURL, apiKey string, nowFunc func() time.Time) (*transitAPI, error) {
	const name = "blockfinder/blockprovider/transitapi"

	metrics, err := setupProviderMetrics(otel.Meter(name), transitAPISource)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &transitAPI{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		nowFunc:    nowFunc,

		metrics: metrics,
		tracer:  otel.Tracer(name),
	}, nil
}

func (a *transitAPI) GetBlockLocation(ctx context.Context, block string) (domain.BlockLocation, error) {
	ctx, span := a.tracer.Start(ctx, "TransitAPI.GetBlockLocation")
	defer span.End()

	url := fmt.Sprintf("%s/blocks/%s", a.baseURL, block)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return domain.BlockLocation{}, err
	}

	req.Header.Set("User-Agent", constants.USER_AGENT)
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("API-Key", a.apiKey)
	}

	start := a.nowFunc()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// The job timed out, don't report
			return domain.BlockLocation{}, fmt.Errorf("failed to send request: %w", ctx.Err())
		}
		err := fmt.Errorf("%w: failed to send request: %w", domain.ErrTemporarilyUnavailable, err)
		reporting.Report(ctx, err)
		return domain.BlockLocation{}, err
	}

	queriedAt := a.nowFunc()

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err := fmt.Errorf("failed to read response body: %w", err)
		reporting.Report(ctx, err)
		return domain.BlockLocation{}, err
	}
	a.metrics.recordRequest(ctx, resp.StatusCode)
	logging.FromContext(ctx).InfoContext(ctx, "transit API request completed", "url", url, "status", resp.StatusCode, "duration", queriedAt.Sub(start).String())

	location, err := locationFromTransitAPIResponse(resp.StatusCode, data, block, queriedAt)
	if errors.Is(err, domain.ErrBlockNotFound) {
		// Pass through error but don't report
		a.metrics.recordReturn(ctx, "not_found", 0)
		return domain.BlockLocation{}, err
	} else if errors.Is(err, domain.ErrTemporarilyUnavailable) {
		a.metrics.recordReturn(ctx, "unavailable", 0)
		return domain.BlockLocation{}, err
	} else if err != nil {
		a.metrics.recordReturn(ctx, "error", 0)
		err := fmt.Errorf("failed to get block location from transit API response: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"data":   string(data),
			"status": strconv.Itoa(resp.StatusCode),
			"block":  block,
		})
		return domain.BlockLocation{}, err
	}

	a.metrics.recordReturn(ctx, "success", len(location.Buses))

	return location, nil
}

type transitAPIResponse struct {
	Block    string              `json:"block"`
	Vehicles []transitAPIVehicle `json:"vehicles"`
}

type transitAPIVehicle struct {
	VehicleNumber string   `json:"vehicleNumber"`
	LastSeen      string   `json:"lastSeen"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
}

func locationFromTransitAPIResponse(statusCode int, data []byte, block string, queriedAt time.Time) (domain.BlockLocation, error) {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return domain.BlockLocation{}, fmt.Errorf("%w: transit API returned status code %d", domain.ErrTemporarilyUnavailable, statusCode)
	case http.StatusNotFound:
		return domain.BlockLocation{}, domain.ErrBlockNotFound
	}

	if statusCode != http.StatusOK {
		return domain.BlockLocation{}, fmt.Errorf("transit API returned status code %d", statusCode)
	}

	var response transitAPIResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return domain.BlockLocation{}, fmt.Errorf("failed to parse transit API response: %w", err)
	}

	if response.Block != "" && !strings.EqualFold(response.Block, block) {
		return domain.BlockLocation{}, fmt.Errorf("transit API returned block %s, expected %s", response.Block, block)
	}

	buses := make([]domain.Bus, 0, len(response.Vehicles))
	for _, vehicle := range response.Vehicles {
		number := strings.TrimSpace(vehicle.VehicleNumber)
		if number == "" {
			return domain.BlockLocation{}, fmt.Errorf("transit API returned a vehicle without a number")
		}
		buses = append(buses, domain.Bus{
			Number:    number,
			Location:  strings.TrimSpace(vehicle.LastSeen),
			Latitude:  vehicle.Latitude,
			Longitude: vehicle.Longitude,
		})
	}

	return domain.BlockLocation{
		Block:     block,
		Buses:     buses,
		Source:    transitAPISource,
		QueriedAt: queriedAt,
	}, nil
}
