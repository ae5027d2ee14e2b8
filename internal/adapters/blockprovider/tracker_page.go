package blockprovider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Amund211/blockfinder/internal/constants"
	"github.com/Amund211/blockfinder/internal/domain"
	"github.com/Amund211/blockfinder/internal/logging"
	"github.com/Amund211/blockfinder/internal/reporting"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const trackerPageSource = "tracker_page"

const maxTrackerPageSize = 2 * 1024 * 1024

// trackerPage scrapes the public vehicle tracker page for a block
type trackerPage struct {
	httpClient *http.Client
	baseURL    string
	nowFunc    func() time.Time

	metrics providerMetricsCollection
	tracer  trace.Tracer
}

func NewTrackerPage(httpClient *http.Client, baseURL string, nowFunc func() time.Time) (*trackerPage, error) {
	const name = "blockfinder/blockprovider/trackerpage"

	metrics, err := setupProviderMetrics(otel.Meter(name), trackerPageSource)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &trackerPage{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		nowFunc:    nowFunc,

		metrics: metrics,
		tracer:  otel.Tracer(name),
	}, nil
}

type trackerPageResponse struct {
	statusCode int
	body       []byte
}

func (p *trackerPage) fetch(ctx context.Context, url string) (trackerPageResponse, error) {
	// A fresh collector per request so callbacks never leak between requests
	collector := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.UserAgent(constants.USER_AGENT),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(maxTrackerPageSize),
	)
	collector.SetClient(p.httpClient)

	var response trackerPageResponse
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
	})
	collector.OnResponse(func(r *colly.Response) {
		response = trackerPageResponse{
			statusCode: r.StatusCode,
			body:       append([]byte(nil), r.Body...),
		}
	})

	err := collector.Visit(url)
	if err != nil && response.statusCode == 0 {
		return trackerPageResponse{}, err
	}

	return response, nil
}

func (p *trackerPage) GetBlockLocation(ctx context.Context, block string) (domain.BlockLocation, error) {
	ctx, span := p.tracer.Start(ctx, "TrackerPage.GetBlockLocation")
	defer span.End()

	url := fmt.Sprintf("%s/block/%s", p.baseURL, block)

	start := p.nowFunc()
	response, err := p.fetch(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			// The job timed out, don't report
			return domain.BlockLocation{}, fmt.Errorf("failed to fetch tracker page: %w", ctx.Err())
		}
		err := fmt.Errorf("%w: failed to fetch tracker page: %w", domain.ErrTemporarilyUnavailable, err)
		reporting.Report(ctx, err)
		return domain.BlockLocation{}, err
	}
	queriedAt := p.nowFunc()

	p.metrics.recordRequest(ctx, response.statusCode)
	logging.FromContext(ctx).InfoContext(ctx, "tracker page request completed", "url", url, "status", response.statusCode, "duration", queriedAt.Sub(start).String())

	location, err := locationFromTrackerPage(response.statusCode, response.body, block, queriedAt)
	if errors.Is(err, domain.ErrBlockNotFound) {
		// Pass through error but don't report
		p.metrics.recordReturn(ctx, "not_found", 0)
		return domain.BlockLocation{}, err
	} else if errors.Is(err, domain.ErrTemporarilyUnavailable) {
		p.metrics.recordReturn(ctx, "unavailable", 0)
		return domain.BlockLocation{}, err
	} else if err != nil {
		p.metrics.recordReturn(ctx, "error", 0)
		err := fmt.Errorf("failed to get block location from tracker page: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"status": strconv.Itoa(response.statusCode),
			"block":  block,
		})
		return domain.BlockLocation{}, err
	}

	p.metrics.recordReturn(ctx, "success", len(location.Buses))

	return location, nil
}

// locationFromTrackerPage reads the vehicle rows of the block table
//
//	<table data-block="44-07">
//	  <tr data-bus-number="6698" data-lat="59.91" data-lon="10.75"><td data-location>Storgata</td></tr>
//	</table>
func locationFromTrackerPage(statusCode int, body []byte, block string, queriedAt time.Time) (domain.BlockLocation, error) {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return domain.BlockLocation{}, fmt.Errorf("%w: tracker page returned status code %d", domain.ErrTemporarilyUnavailable, statusCode)
	case http.StatusNotFound:
		return domain.BlockLocation{}, domain.ErrBlockNotFound
	}

	if statusCode != http.StatusOK {
		return domain.BlockLocation{}, fmt.Errorf("tracker page returned status code %d", statusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return domain.BlockLocation{}, fmt.Errorf("failed to parse tracker page: %w", err)
	}

	table := doc.Find("[data-block]").First()
	if table.Length() == 0 {
		if doc.Find("[data-block-not-found]").Length() > 0 {
			return domain.BlockLocation{}, domain.ErrBlockNotFound
		}
		return domain.BlockLocation{}, fmt.Errorf("tracker page has no block table")
	}

	if shownBlock := strings.TrimSpace(table.AttrOr("data-block", "")); !strings.EqualFold(shownBlock, block) {
		return domain.BlockLocation{}, fmt.Errorf("tracker page shows block %s, expected %s", shownBlock, block)
	}

	buses := []domain.Bus{}
	var rowErr error
	table.Find("[data-bus-number]").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		number := strings.TrimSpace(row.AttrOr("data-bus-number", ""))
		if number == "" {
			rowErr = fmt.Errorf("tracker page has a vehicle row without a number")
			return false
		}

		latitude, err := optionalFloatAttr(row, "data-lat")
		if err != nil {
			rowErr = err
			return false
		}
		longitude, err := optionalFloatAttr(row, "data-lon")
		if err != nil {
			rowErr = err
			return false
		}

		location := strings.Join(strings.Fields(row.Find("[data-location]").First().Text()), " ")

		buses = append(buses, domain.Bus{
			Number:    number,
			Location:  location,
			Latitude:  latitude,
			Longitude: longitude,
		})
		return true
	})
	if rowErr != nil {
		return domain.BlockLocation{}, rowErr
	}

	return domain.BlockLocation{
		Block:     block,
		Buses:     buses,
		Source:    trackerPageSource,
		QueriedAt: queriedAt,
	}, nil
}

func optionalFloatAttr(selection *goquery.Selection, name string) (*float64, error) {
	raw, ok := selection.Attr(name)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return nil, nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s '%.20s' on tracker page: %w", name, raw, err)
	}

	return &value, nil
}
