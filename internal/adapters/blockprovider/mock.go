package blockprovider

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/Amund211/blockfinder/internal/domain"
)

// mockedProvider makes up a deterministic bus for every block, for local development
type mockedProvider struct {
	nowFunc func() time.Time
	delay   time.Duration
}

func (p *mockedProvider) GetBlockLocation(ctx context.Context, block string) (domain.BlockLocation, error) {
	select {
	case <-ctx.Done():
		return domain.BlockLocation{}, ctx.Err()
	case <-time.After(p.delay):
	}

	hash := fnv.New32a()
	_, _ = hash.Write([]byte(block))
	busNumber := 6000 + hash.Sum32()%1000

	return domain.BlockLocation{
		Block: block,
		Buses: []domain.Bus{
			{
				Number:   fmt.Sprintf("%d", busNumber),
				Location: "Depot",
			},
		},
		Source:    "mock",
		QueriedAt: p.nowFunc(),
	}, nil
}

func NewMockedProvider(nowFunc func() time.Time, delay time.Duration) BlockProvider {
	return &mockedProvider{
		nowFunc: nowFunc,
		delay:   delay,
	}
}
