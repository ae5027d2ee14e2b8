package app

import (
	"context"
	"fmt"

	"github.com/Amund211/blockfinder/internal/domain"
	"github.com/Amund211/blockfinder/internal/logging"
	"github.com/Amund211/blockfinder/internal/reporting"
	"github.com/Amund211/blockfinder/internal/strutils"
)

type LookupBlock func(ctx context.Context, block string) (LookupResult[domain.BlockLocation], error)

type PollBlockStatus func(ctx context.Context, block string) (PollResult[domain.BlockLocation], error)

type GetHealth func(ctx context.Context) Health

func notNormalizedError(ctx context.Context, block string) error {
	logging.FromContext(ctx).ErrorContext(ctx, "Block is not normalized", "block", block)
	err := fmt.Errorf("block is not normalized")
	reporting.Report(ctx, err, map[string]string{
		"block": block,
	})
	return err
}

func BuildLookupBlock(blockCache *FastResultCache[domain.BlockLocation]) LookupBlock {
	return func(ctx context.Context, block string) (LookupResult[domain.BlockLocation], error) {
		if !strutils.BlockIsNormalized(block) {
			return LookupResult[domain.BlockLocation]{}, notNormalizedError(ctx, block)
		}

		result, err := blockCache.Lookup(ctx, block)
		if err != nil {
			// NOTE: RefreshFunc implementations handle their own error reporting
			return LookupResult[domain.BlockLocation]{}, fmt.Errorf("failed to look up block: %w", err)
		}

		return result, nil
	}
}

func BuildPollBlockStatus(blockCache *FastResultCache[domain.BlockLocation]) PollBlockStatus {
	return func(ctx context.Context, block string) (PollResult[domain.BlockLocation], error) {
		if !strutils.BlockIsNormalized(block) {
			return PollResult[domain.BlockLocation]{}, notNormalizedError(ctx, block)
		}

		return blockCache.PollStatus(block), nil
	}
}

func BuildGetHealth(blockCache *FastResultCache[domain.BlockLocation]) GetHealth {
	return func(ctx context.Context) Health {
		return blockCache.Health()
	}
}
