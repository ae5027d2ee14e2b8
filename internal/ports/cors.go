package ports

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DomainSuffixes are the sites allowed to call the API from a browser. A suffix matches itself and
// every subdomain, over https only.
type DomainSuffixes struct {
	suffixes []string
}

func NewDomainSuffixes(suffixes ...string) (*DomainSuffixes, error) {
	for _, suffix := range suffixes {
		switch {
		case suffix == "":
			return nil, errors.New("domain suffix should not be empty")
		case strings.HasPrefix(suffix, "."):
			return nil, fmt.Errorf("domain suffix %s should not start with a dot", suffix)
		case strings.Contains(suffix, "://"):
			return nil, fmt.Errorf("domain suffix %s should not contain a scheme", suffix)
		}
	}
	return &DomainSuffixes{suffixes: suffixes}, nil
}

func (d *DomainSuffixes) AnyMatch(origin string) bool {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme != "https" || parsed.Host == "" {
		return false
	}
	if parsed.Path != "" || parsed.RawQuery != "" || parsed.User != nil {
		return false
	}

	for _, suffix := range d.suffixes {
		if parsed.Host == suffix || strings.HasSuffix(parsed.Host, "."+suffix) {
			return true
		}
	}
	return false
}

// BuildCORSMiddleware answers preflights for allowed origins and lets browsers read Retry-After on
// pending lookups
func BuildCORSMiddleware(allowedSuffixes *DomainSuffixes) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			header := w.Header()
			header.Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			if !allowedSuffixes.AnyMatch(origin) {
				next(w, r)
				return
			}

			header.Set("Access-Control-Allow-Origin", origin)
			if r.Method == http.MethodOptions {
				header.Set("Access-Control-Allow-Methods", "GET")
				header.Set("Access-Control-Allow-Headers", "Content-Type")
				header.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			header.Set("Access-Control-Expose-Headers", "Retry-After")
			next(w, r)
		}
	}
}

func BuildCORSHandler(allowedSuffixes *DomainSuffixes) http.HandlerFunc {
	return BuildCORSMiddleware(allowedSuffixes)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}
