package blockprovider

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type providerMetricsCollection struct {
	requestCount metric.Int64Counter
	returnCount  metric.Int64Counter
}

func setupProviderMetrics(meter metric.Meter, source string) (providerMetricsCollection, error) {
	requestCount, err := meter.Int64Counter(
		fmt.Sprintf("blockprovider/%s/request_count", source),
		metric.WithDescription("Requests sent upstream by status code"),
	)
	if err != nil {
		return providerMetricsCollection{}, fmt.Errorf("failed to create request count metric: %w", err)
	}

	returnCount, err := meter.Int64Counter(
		fmt.Sprintf("blockprovider/%s/return_count", source),
		metric.WithDescription("Block locations returned by outcome"),
	)
	if err != nil {
		return providerMetricsCollection{}, fmt.Errorf("failed to create return count metric: %w", err)
	}

	return providerMetricsCollection{
		requestCount: requestCount,
		returnCount:  returnCount,
	}, nil
}

func (m providerMetricsCollection) recordRequest(ctx context.Context, statusCode int) {
	m.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status_code", strconv.Itoa(statusCode)),
	))
}

func (m providerMetricsCollection) recordReturn(ctx context.Context, outcome string, buses int) {
	m.returnCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("has_buses", buses > 0),
	))
}
