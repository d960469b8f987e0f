package media

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// Fetcher downloads the body behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher streams media over HTTP, retrying transport errors and 5xx
// answers with exponential backoff.
type HTTPFetcher struct {
	client     *http.Client
	maxRetries uint64
	maxElapsed time.Duration
}

func NewHTTPFetcher(client *http.Client, maxRetries uint64) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client, maxRetries: maxRetries, maxElapsed: 2 * time.Minute}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var buf bytes.Buffer
	op := func() error {
		buf.Reset()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			serr := &StatusError{StatusCode: resp.StatusCode}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return serr
			}
			return backoff.Permanent(serr)
		}
		_, err = io.Copy(&buf, resp.Body)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = f.maxElapsed
	notify := func(err error, next time.Duration) {
		logrus.WithError(err).Warnf("Fetching %s failed, retrying in %v", url, next)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, f.maxRetries), ctx), notify); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
