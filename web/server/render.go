package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/df07/go-wgpu-pathtracer/pkg/imageio"
)

// SSEEvent is one server-sent event
type SSEEvent struct {
	Type string `json:"type"` // "status" or "console"
	Data string `json:"data"` // JSON-encoded payload
}

// previewFormats maps the format query parameter to an encoder extension and content type
var previewFormats = map[string][2]string{
	"png":  {".png", "image/png"},
	"webp": {".webp", "image/webp"},
	"bmp":  {".bmp", "image/bmp"},
}

// handlePreview returns the current accumulation as a tone-mapped image
func (s *Server) handlePreview(c echo.Context) error {
	query := c.QueryParams()
	width, err := parseIntParam(query, "width", 0, 0, maxDimension)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	format := query.Get("format")
	if format == "" {
		format = "png"
	}
	enc, ok := previewFormats[format]
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown format: "+format)
	}

	handle, err := s.startSave()
	if err != nil {
		return saveError(err)
	}
	img, err := handle.Image(handle.TotalSamples())
	if err != nil {
		return saveError(err)
	}

	var buf bytes.Buffer
	if err := imageio.Encode(&buf, enc[0], imageio.Scale(img, width)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set("X-Samples", strconv.FormatInt(handle.TotalSamples(), 10))
	return c.Blob(http.StatusOK, enc[1], buf.Bytes())
}

// handleEvents streams status updates and console output as server-sent events.
// The stream ends when the client disconnects or after limit status events.
func (s *Server) handleEvents(c echo.Context) error {
	query := c.QueryParams()
	intervalMs, err := parseIntParam(query, "interval", 500, 10, 60000)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	limit, err := parseIntParam(query, "limit", 0, 0, 1000000)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var console <-chan ConsoleMessage
	if s.opts.Console != nil {
		ch, unsubscribe := s.opts.Console.Subscribe(50)
		defer unsubscribe()
		console = ch
	}

	ctx := c.Request().Context()
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	sent := 0
	for {
		if err := writeSSE(w, "status", s.status()); err != nil {
			return nil
		}
		sent++
		if limit > 0 && sent >= limit {
			return nil
		}

	wait:
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-console:
				if !ok {
					console = nil
					continue
				}
				if err := writeSSE(w, "console", msg); err != nil {
					return nil
				}
			case <-ticker.C:
				break wait
			}
		}
	}
}

// writeSSE writes a single event and flushes it to the client
func writeSSE(w *echo.Response, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	w.Flush()
	return nil
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}
