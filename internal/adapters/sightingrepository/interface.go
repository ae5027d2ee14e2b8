package sightingrepository

import (
	"context"

	"github.com/Amund211/blockfinder/internal/domain"
)

type SightingRepository interface {
	StoreSightings(ctx context.Context, location domain.BlockLocation) error
	GetSightings(ctx context.Context, block string, limit int) ([]domain.Sighting, error)
}
