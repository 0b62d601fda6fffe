package controller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DoyleJ11/signal-dashboard/internal/signal"
)

const maxBodyBytes = 1 << 20

// Fetcher performs one request-response cycle against the controller.
type Fetcher interface {
	Fetch(ctx context.Context) (signal.Snapshot, error)
}

type FetcherFunc func(ctx context.Context) (signal.Snapshot, error)

func (f FetcherFunc) Fetch(ctx context.Context) (signal.Snapshot, error) { return f(ctx) }

type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

func NewHTTPFetcher(url string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (signal.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return signal.Snapshot{}, &TransportError{URL: f.URL, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return signal.Snapshot{}, &TransportError{URL: f.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return signal.Snapshot{}, &TransportError{
			URL:        f.URL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return signal.Snapshot{}, &TransportError{URL: f.URL, StatusCode: resp.StatusCode, Err: err}
	}
	return Decode(body)
}
