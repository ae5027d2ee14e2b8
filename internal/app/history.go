package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Amund211/blockfinder/internal/domain"
	"github.com/Amund211/blockfinder/internal/reporting"
	"github.com/Amund211/blockfinder/internal/strutils"
)

const MAX_HISTORY_LIMIT = 100

var ErrInvalidHistoryLimit = errors.New("invalid history limit")

type GetBlockHistory func(ctx context.Context, block string, limit int) ([]domain.Sighting, error)

type sightingHistory interface {
	GetSightings(ctx context.Context, block string, limit int) ([]domain.Sighting, error)
}

func BuildGetBlockHistory(repo sightingHistory) GetBlockHistory {
	return func(ctx context.Context, block string, limit int) ([]domain.Sighting, error) {
		if !strutils.BlockIsNormalized(block) {
			err := fmt.Errorf("block is not normalized")
			reporting.Report(ctx, err, map[string]string{
				"block": block,
				"limit": strconv.Itoa(limit),
			})
			return nil, err
		}

		if limit < 1 || limit > MAX_HISTORY_LIMIT {
			return nil, fmt.Errorf("%w: must be between 1 and %d, got %d", ErrInvalidHistoryLimit, MAX_HISTORY_LIMIT, limit)
		}

		sightings, err := repo.GetSightings(ctx, block, limit)
		if err != nil {
			// NOTE: SightingRepository implementations handle their own error reporting
			return nil, fmt.Errorf("failed to get sightings: %w", err)
		}

		return sightings, nil
	}
}
