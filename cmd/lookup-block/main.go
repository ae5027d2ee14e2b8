package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Amund211/blockfinder/internal/adapters/blockprovider"
	"github.com/Amund211/blockfinder/internal/config"
	"github.com/Amund211/blockfinder/internal/logging"
	"github.com/Amund211/blockfinder/internal/strutils"

	_ "golang.org/x/crypto/x509roots/fallback"
)

type busOutput struct {
	Number    string   `json:"number"`
	Location  string   `json:"location"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type lookupOutput struct {
	Block     string      `json:"block"`
	Source    string      `json:"source"`
	QueriedAt time.Time   `json:"queriedAt"`
	Buses     []busOutput `json:"buses"`
}

// Looks up a single block against the configured provider, bypassing the cache
func main() {
	timeout := flag.Duration("timeout", 30*time.Second, "how long to wait for the provider")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-timeout 30s] <block>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	block, err := strutils.NormalizeBlock(flag.Arg(0))
	if err != nil {
		fail("Invalid block", "error", err.Error())
	}

	conf, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}

	httpClient := blockprovider.NewRetryingHTTPClient(logger, *timeout)
	provider, err := blockprovider.NewBlockProviderOrMock(conf, httpClient, time.Now, time.After)
	if err != nil {
		fail("Failed to initialize block provider", "error", err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logging.WithBlock(logging.AddToContext(ctx, logger), block)

	location, err := provider.GetBlockLocation(ctx, block)
	if err != nil {
		fail("Failed to look up block", "block", block, "error", err.Error())
	}

	output := lookupOutput{
		Block:     location.Block,
		Source:    location.Source,
		QueriedAt: location.QueriedAt,
		Buses:     make([]busOutput, 0, len(location.Buses)),
	}
	for _, bus := range location.Buses {
		output.Buses = append(output.Buses, busOutput(bus))
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fail("Failed to write output", "error", err.Error())
	}
}
