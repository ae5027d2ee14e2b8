package domain

import "time"

type Bus struct {
	Number string
	// Free-form description of where the bus was last seen, as reported upstream
	Location  string
	Latitude  *float64
	Longitude *float64
}

// BlockLocation is a snapshot of the buses serving a block at QueriedAt
type BlockLocation struct {
	Block     string
	Buses     []Bus
	Source    string
	QueriedAt time.Time
}

func (b BlockLocation) BusNumbers() []string {
	numbers := make([]string, 0, len(b.Buses))
	for _, bus := range b.Buses {
		numbers = append(numbers, bus.Number)
	}
	return numbers
}
