package blockprovider

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// NewRetryingHTTPClient retries connection errors and 5xx/429 responses a couple of times.
//
// After the last attempt the final response is returned as is, so callers still see the status code.
func NewRetryingHTTPClient(logger *slog.Logger, timeout time.Duration) *http.Client {
	client := retryablehttp.NewClient()
	client.Logger = logger
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.HTTPClient.Timeout = timeout

	return client.StandardClient()
}
