package inventory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/aqw/HTCrystalBall/internal/observability"
)

// HTTPSource fetches a snapshot published by the slot scraper over HTTP.
type HTTPSource struct {
	URL  string
	opts Options
	http *retryablehttp.Client
}

func newHTTPSource(rawURL string, opts Options) *HTTPSource {
	client := retryablehttp.NewClient()
	if opts.HTTPRetries >= 0 {
		client.RetryMax = opts.HTTPRetries
	}
	if opts.HTTPTimeout > 0 {
		client.HTTPClient.Timeout = opts.HTTPTimeout
	}
	client.Logger = leveledLogger{log: opts.Logger}
	return &HTTPSource{URL: rawURL, opts: opts, http: client}
}

func (s *HTTPSource) String() string { return s.URL }

func (s *HTTPSource) Load(ctx context.Context) (Snapshot, error) {
	ctx, span := observability.StartSpan(ctx, "inventory.load_http", attribute.String("inventory.url", s.URL))
	defer span.End()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("build inventory request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml")
	resp, err := s.http.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch inventory: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Snapshot{}, fmt.Errorf("fetch inventory returned %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	format := FormatFor(req.URL.Path)
	if strings.Contains(resp.Header.Get("Content-Type"), "yaml") {
		format = FormatYAML
	}
	snap, err := Decode(resp.Body, format)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", s.URL, err)
	}
	recordLoad(s.opts, "http", snap)
	return snap, nil
}

// leveledLogger routes retryablehttp's retry chatter into zerolog.
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Error().Fields(kv).Msg(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Debug().Fields(kv).Msg(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Trace().Fields(kv).Msg(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warn().Fields(kv).Msg(msg) }
