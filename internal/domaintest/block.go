package domaintest

import (
	"time"

	"github.com/Amund211/blockfinder/internal/domain"
)

type blockLocationBuilder struct {
	location domain.BlockLocation
}

func NewBlockLocationBuilder(block string, queriedAt time.Time) *blockLocationBuilder {
	return &blockLocationBuilder{
		location: domain.BlockLocation{
			Block:     block,
			Buses:     []domain.Bus{},
			Source:    "test",
			QueriedAt: queriedAt,
		},
	}
}

func (b *blockLocationBuilder) WithBus(number, location string) *blockLocationBuilder {
	b.location.Buses = append(b.location.Buses, domain.Bus{Number: number, Location: location})
	return b
}

func (b *blockLocationBuilder) WithPosition(number string, latitude, longitude float64) *blockLocationBuilder {
	b.location.Buses = append(b.location.Buses, domain.Bus{
		Number:    number,
		Latitude:  &latitude,
		Longitude: &longitude,
	})
	return b
}

func (b *blockLocationBuilder) WithSource(source string) *blockLocationBuilder {
	b.location.Source = source
	return b
}

func (b *blockLocationBuilder) Build() domain.BlockLocation {
	buses := make([]domain.Bus, len(b.location.Buses))
	copy(buses, b.location.Buses)
	location := b.location
	location.Buses = buses
	return location
}
