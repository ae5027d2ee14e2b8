package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Amund211/blockfinder/internal/domain"
	"github.com/Amund211/blockfinder/internal/logging"
)

type blockProvider interface {
	GetBlockLocation(ctx context.Context, block string) (domain.BlockLocation, error)
}

type sightingArchive interface {
	StoreSightings(ctx context.Context, location domain.BlockLocation) error
}

// BuildRefreshAndArchiveBlock fetches the block from the provider and archives what was seen
func BuildRefreshAndArchiveBlock(provider blockProvider, repo sightingArchive) RefreshFunc[domain.BlockLocation] {
	return func(ctx context.Context, block string) (domain.BlockLocation, error) {
		logger := logging.FromContext(ctx)

		location, err := provider.GetBlockLocation(ctx, block)
		if err != nil {
			// NOTE: BlockProvider implementations handle their own error reporting
			return domain.BlockLocation{}, fmt.Errorf("could not get block location: %w", err)
		}

		// Ignore cancellations from the refresh context and try to store the data anyway
		// Take a maximum of 1 second to not hold the job slot for too long
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 1*time.Second)
		defer cancel()
		err = repo.StoreSightings(storeCtx, location)
		if err != nil {
			// NOTE: SightingRepository implementations handle their own error reporting
			logger.ErrorContext(ctx, "failed to store sightings", "error", err.Error())

			// NOTE: We still return the location even though archiving failed
		}

		return location, nil
	}
}
