package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/timothy-holmes/ht-tracker/internal/config"
	"github.com/timothy-holmes/ht-tracker/internal/logging"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/types"
)

type Fetcher interface {
	// Fetch performs one request and parses the observations it returns.
	// It never retries and never touches storage.
	Fetch(ctx context.Context) (types.FetchResult, error)
}

type fetcherImpl struct {
	url     string
	headers Headers
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

// NewFetcher builds a fetcher for cfg.FetchURL using the header bundle from
// cfg.HeadersFile (or the embedded default).
func NewFetcher(cfg config.Config, logger *slog.Logger) (Fetcher, error) {
	headers, err := LoadHeaders(cfg.HeadersFile)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: cfg.FetchTimeout}
	return New(cfg.FetchURL, headers, client, logger), nil
}

// New builds a fetcher from explicit parts. A nil client uses http.DefaultClient.
func New(url string, headers Headers, client *http.Client, logger *slog.Logger) Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &fetcherImpl{
		url:     url,
		headers: headers,
		client:  client,
		logger:  logger,
		now:     time.Now,
	}
}

func (f *fetcherImpl) Fetch(ctx context.Context) (types.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return types.FetchResult{}, &FetchError{URL: f.url, Err: err}
	}
	f.headers.apply(req)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return types.FetchResult{}, &FetchError{URL: f.url, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.FetchResult{}, &FetchError{
			URL:        f.url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s", ErrUpstreamStatus, resp.Status),
		}
	}

	body, err := readBody(resp)
	if err != nil {
		return types.FetchResult{}, &FetchError{URL: f.url, StatusCode: resp.StatusCode, Err: err}
	}

	readings, devices, err := Parse(body, f.logger)
	if err != nil {
		return types.FetchResult{}, &FetchError{URL: f.url, StatusCode: resp.StatusCode, Err: err}
	}

	f.logger.Debug("fetched observations",
		"url", f.url,
		"status", resp.StatusCode,
		"bytes", len(body),
		"readings", len(readings),
		"devices", len(devices),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return types.FetchResult{
		Readings:  readings,
		Devices:   devices,
		FetchedAt: f.now().UTC(),
	}, nil
}
