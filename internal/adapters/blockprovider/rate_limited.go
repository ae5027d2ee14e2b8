package blockprovider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Amund211/blockfinder/internal/domain"
	"github.com/Amund211/blockfinder/internal/logging"
	"github.com/Amund211/blockfinder/internal/ratelimiting"
	"github.com/Amund211/blockfinder/internal/reporting"
)

const getBlockLocationMaxOperationTime = 10 * time.Second

type RequestLimiter interface {
	Do(ctx context.Context, maxOperationTime time.Duration, operation func(ctx context.Context) error) error
}

type rateLimitedProvider struct {
	provider BlockProvider
	limiter  RequestLimiter
}

// NewRateLimitedProvider keeps requests to the upstream within the limiter's window
func NewRateLimitedProvider(provider BlockProvider, limiter RequestLimiter) BlockProvider {
	return &rateLimitedProvider{
		provider: provider,
		limiter:  limiter,
	}
}

func (p *rateLimitedProvider) GetBlockLocation(ctx context.Context, block string) (domain.BlockLocation, error) {
	var location domain.BlockLocation
	err := p.limiter.Do(ctx, getBlockLocationMaxOperationTime, func(ctx context.Context) error {
		var err error
		location, err = p.provider.GetBlockLocation(ctx, block)
		return err
	})
	if errors.Is(err, ratelimiting.ErrWouldExceedDeadline) {
		reporting.Report(ctx, fmt.Errorf("too many requests to block provider"))
		logging.FromContext(ctx).WarnContext(ctx, "Did not get block location due to rate limiting", "block", block)
		return domain.BlockLocation{}, fmt.Errorf("%w: too many requests to block provider", domain.ErrTemporarilyUnavailable)
	} else if err != nil {
		// NOTE: The wrapped provider handles its own error reporting
		return domain.BlockLocation{}, err
	}

	return location, nil
}
