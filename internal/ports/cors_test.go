package ports_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Amund211/blockfinder/internal/ports"
	"github.com/stretchr/testify/require"
)

const PROD_DOMAIN_SUFFIX = "blockfinder.app"
const STAGING_DOMAIN_SUFFIX = "blockfinder-web.pages.dev"

type originRule struct {
	origin  string
	allowed bool
}

func TestCORS(t *testing.T) {
	t.Parallel()
	allowedOrigins, err := ports.NewDomainSuffixes(
		PROD_DOMAIN_SUFFIX,
		STAGING_DOMAIN_SUFFIX,
	)
	require.NoError(t, err)

	cases := []originRule{
		// Prod
		{
			origin: "https://blockfinder.app",

			allowed: true,
		},
		{
			origin:  "https://www.blockfinder.app",
			allowed: true,
		},
		// Staging
		{
			origin:  "https://53bcd591.blockfinder-web.pages.dev",
			allowed: true,
		},
		{
			origin:  "https://new-api.blockfinder-web.pages.dev",
			allowed: true,
		},
		{
			origin:  "https://blockfinder-web.pages.dev",
			allowed: true,
		},
		// Other pages
		{
			origin:  "example.com",
			allowed: false,
		},
		{
			origin:  "https://example.com",
			allowed: false,
		},
		{
			origin:  "https://www.example.com",
			allowed: false,
		},
		{
			origin:  "https://www.google.com",
			allowed: false,
		},
		{
			origin:  "https://transit.example.org",
			allowed: false,
		},
		// Similar-looking domains
		{
			origin: "https://block-finder.app",

			allowed: false,
		},
		{
			origin:  "https://www.block-finder.app",
			allowed: false,
		},
		{
			origin: "https://myblockfinder.app",

			allowed: false,
		},
		{
			origin:  "https://www.myblockfinder.app",
			allowed: false,
		},
		{
			origin:  "https://superblockfinder-web.pages.dev",
			allowed: false,
		},
		{
			origin:  "https://something.otherblockfinder-web.pages.dev",
			allowed: false,
		},
		// Weird cases
		{
			origin:  "",
			allowed: false,
		},
		{
			origin:  "blockfinder",
			allowed: false,
		},
		{
			origin:  "finder.app",
			allowed: false,
		},
		{
			origin:  "block.finder.app",
			allowed: false,
		},
		{
			origin:  "block-finder.app",
			allowed: false,
		},
		{
			origin:  "pages.dev",
			allowed: false,
		},
		{
			origin:  "superblockfinder-web.pages.dev",
			allowed: false,
		},
		{
			origin:  "http://blockfinder.app",
			allowed: false,
		},
		{
			origin:  "https://blockfinder.app:8443",
			allowed: false,
		},
		{
			origin:  "https://blockfinder.app/v1/blocks/44-07",
			allowed: false,
		},
	}

	runCORSTest := func(t *testing.T, handler http.HandlerFunc, method string, c originRule, handlerStatusCode int, handlerBody []byte) {
		req := httptest.NewRequest(method, "https://api-url.com", nil)
		req.Header.Set("Origin", c.origin)
		w := httptest.NewRecorder()

		handler(w, req)

		resp := w.Result()

		// The handler is allowed to run when the method is not OPTIONS
		if method != "OPTIONS" {
			require.Equal(t, handlerStatusCode, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.Equal(t, handlerBody, body)
		}

		// CORS
		if c.allowed {
			require.Equal(t, c.origin, resp.Header.Get("Access-Control-Allow-Origin"))

			if method == "OPTIONS" {
				require.Equal(t, "GET", resp.Header.Get("Access-Control-Allow-Methods"))
				require.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
				require.Equal(t, "600", resp.Header.Get("Access-Control-Max-Age"))
				require.Empty(t, resp.Header.Get("Access-Control-Expose-Headers"))
			} else {
				require.Empty(t, resp.Header.Get("Access-Control-Allow-Methods"))
				require.Empty(t, resp.Header.Get("Access-Control-Allow-Headers"))
				require.Equal(t, "Retry-After", resp.Header.Get("Access-Control-Expose-Headers"))
			}
		} else {
			require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
			require.Empty(t, resp.Header.Get("Access-Control-Allow-Methods"))
			require.Empty(t, resp.Header.Get("Access-Control-Allow-Headers"))
			require.Empty(t, resp.Header.Get("Access-Control-Expose-Headers"))
		}
		require.Equal(t, "Origin", resp.Header.Get("Vary"))
	}

	t.Run("BuildCORSMiddleware", func(t *testing.T) {
		middleware := ports.BuildCORSMiddleware(allowedOrigins)

		handler := middleware(
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("Hello, world!"))
				w.WriteHeader(200)
			},
		)

		for _, c := range cases {
			t.Run(fmt.Sprintf("Origin:'%s'", c.origin), func(t *testing.T) {
				t.Parallel()
				for _, method := range []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"} {
					t.Run(method, func(t *testing.T) {
						t.Parallel()

						runCORSTest(t, handler, method, c, 200, []byte("Hello, world!"))
					})
				}
			})
		}
	})

	t.Run("NewDomainSuffixes rejects malformed suffixes", func(t *testing.T) {
		t.Parallel()

		for _, suffix := range []string{"", ".blockfinder.app", "https://blockfinder.app"} {
			_, err := ports.NewDomainSuffixes(PROD_DOMAIN_SUFFIX, suffix)
			require.Error(t, err, suffix)
		}
	})

	t.Run("BuildCORSHandler", func(t *testing.T) {
		handler := ports.BuildCORSHandler(allowedOrigins)

		for _, c := range cases {
			t.Run(fmt.Sprintf("Origin:'%s'", c.origin), func(t *testing.T) {
				t.Parallel()
				for _, method := range []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"} {
					t.Run(method, func(t *testing.T) {
						t.Parallel()

						runCORSTest(t, handler, method, c, 204, []byte{})
					})
				}
			})
		}
	})
}
