package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// newHTTPClient returns an http.Client with the per-lead-hour timeout from
// spec §5 (recommended 10 min; callers pass the configured value).
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// getWithRetry performs an HTTP GET with exponential backoff, mirroring
// internal/ingest/pws.go's retry idiom in the teacher: permanent errors (4xx
// other than 429) abort immediately, transient ones (429, network errors,
// 5xx) retry until the context is cancelled or the backoff gives up.
func getWithRetry(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, int, error) {
	var body []byte
	var status int

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", url, err)
		}
		defer resp.Body.Close()
		status = resp.StatusCode

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("fetch %s: retryable status %d", url, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d: %s", url, resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body %s: %w", url, err))
		}
		return nil
	}

	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, status, err
	}
	return body, status, nil
}
