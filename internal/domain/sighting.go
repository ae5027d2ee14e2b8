package domain

import "time"

type Sighting struct {
	Block     string
	BusNumber string
	Location  string
	Source    string
	SeenAt    time.Time
}
