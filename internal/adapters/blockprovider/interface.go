package blockprovider

import (
	"context"
	"net/http"

	"github.com/Amund211/blockfinder/internal/domain"
)

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type BlockProvider interface {
	GetBlockLocation(ctx context.Context, block string) (domain.BlockLocation, error)
}
