package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/Amund211/blockfinder/internal/logging"
	"github.com/stretchr/testify/assert"
)

type StringAttr struct {
	Key   string
	Value string
}

func TestRequestLoggerMiddleware(t *testing.T) {
	run := func(request *http.Request, useMiddleware bool) []StringAttr {
		t.Helper()

		buf := &bytes.Buffer{}
		middleware := logging.NewRequestLoggerMiddleware(slog.New(slog.NewJSONHandler(buf, nil)))

		logRequest := func(w http.ResponseWriter, r *http.Request) {
			logging.FromContext(r.Context()).Info("test")
		}

		handler := logRequest
		if useMiddleware {
			handler = middleware(logRequest)
		}

		w := httptest.NewRecorder()
		handler(w, request)

		var logEntry map[string]interface{}
		err := json.Unmarshal(buf.Bytes(), &logEntry)
		assert.NoError(t, err)
		attrs := make([]StringAttr, 0)

		foundBase := 0
		for key, value := range logEntry {
			if key == "msg" {
				assert.Equal(t, "test", value)
				foundBase++
			} else if key == "level" {
				assert.Equal(t, "INFO", value)
				foundBase++
			} else if key == "time" {
				foundBase++
			} else if key == "correlationID" {
				foundBase++
			} else {
				attrs = append(attrs, StringAttr{Key: key, Value: value.(string)})
			}
		}

		assert.Equal(t, 4, foundBase)

		return attrs
	}

	t.Run("with middleware", func(t *testing.T) {
		t.Run("all props", func(t *testing.T) {
			requestUrl, err := url.Parse("http://example.com/v1/blocks/44-07")
			assert.NoError(t, err)

			request := &http.Request{
				URL:    requestUrl,
				Method: "GET",
				Header: http.Header{
					"User-Agent": []string{"user-agent/1.0"},
				},
			}
			request.SetPathValue("block", "44-07")

			attrs := run(request, true)

			assert.ElementsMatch(t, []StringAttr{
				{Key: "block", Value: "44-07"},
				{Key: "userAgent", Value: "user-agent/1.0"},
				{Key: "methodPath", Value: "GET /v1/blocks/44-07"},
			}, attrs)
		})

		t.Run("missing props", func(t *testing.T) {
			requestUrl, err := url.Parse("http://example.com/v1/health")
			assert.NoError(t, err)

			attrs := run(&http.Request{
				URL:    requestUrl,
				Method: "POST",
			}, true)

			assert.ElementsMatch(t, []StringAttr{
				{Key: "block", Value: "<missing>"},
				{Key: "userAgent", Value: "<missing>"},
				{Key: "methodPath", Value: "POST /v1/health"},
			}, attrs)
		})

		t.Run("correlation ids differ between requests", func(t *testing.T) {
			buf := &bytes.Buffer{}
			middleware := logging.NewRequestLoggerMiddleware(slog.New(slog.NewJSONHandler(buf, nil)))

			ids := make([]string, 0, 2)
			for range 2 {
				buf.Reset()
				middleware(func(w http.ResponseWriter, r *http.Request) {
					logging.FromContext(r.Context()).Info("test")
				})(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/health", nil))

				var logEntry map[string]any
				err := json.Unmarshal(buf.Bytes(), &logEntry)
				assert.NoError(t, err)
				id, ok := logEntry["correlationID"].(string)
				assert.True(t, ok)
				assert.NotEmpty(t, id)
				ids = append(ids, id)
			}
			assert.NotEqual(t, ids[0], ids[1])
		})
	})

	t.Run("without middleware", func(t *testing.T) {
		logging.FromContext(context.Background()).Info("don't crash when no logger in context")
	})
}
