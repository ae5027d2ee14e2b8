package blockprovider

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Amund211/blockfinder/internal/config"
	"github.com/Amund211/blockfinder/internal/ratelimiting"
)

// NewBlockProviderOrMock picks the configured upstream, preferring the transit API over the tracker page.
//
// Real upstreams are rate limited. Development without an upstream gets a mocked provider.
func NewBlockProviderOrMock(
	config config.Config,
	httpClient *http.Client,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) (BlockProvider, error) {
	var provider BlockProvider
	switch {
	case config.TransitAPIURL() != "":
		transitAPI, err := NewTransitAPI(httpClient, config.TransitAPIURL(), config.TransitAPIKey(), nowFunc)
		if err != nil {
			return nil, fmt.Errorf("failed to create transit API provider: %w", err)
		}
		provider = transitAPI
	case config.TrackerURL() != "":
		trackerPage, err := NewTrackerPage(httpClient, config.TrackerURL(), nowFunc)
		if err != nil {
			return nil, fmt.Errorf("failed to create tracker page provider: %w", err)
		}
		provider = trackerPage
	case config.IsDevelopment():
		return NewMockedProvider(nowFunc, 300*time.Millisecond), nil
	default:
		return nil, fmt.Errorf("Missing block provider url in non-development environment")
	}

	limiter, err := ratelimiting.NewWindowLimiter(config.UpstreamLimit(), config.UpstreamWindow(), nowFunc, afterFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream limiter: %w", err)
	}

	return NewRateLimitedProvider(provider, limiter), nil
}
