package media

import (
	"errors"
	"fmt"
)

// ErrNoProgressiveVideo is returned when a video offers no video/mp4 variant.
var ErrNoProgressiveVideo = errors.New("no progressive mp4 variant")

// MediaFetchError is a failed download of one media item of a tweet. It is
// retryable: the next attempt may succeed.
type MediaFetchError struct {
	TweetID int64
	URL     string
	Err     error
}

func (e *MediaFetchError) Error() string {
	return fmt.Sprintf("fetching media %s of tweet %d: %v", e.URL, e.TweetID, e.Err)
}

func (e *MediaFetchError) Unwrap() error {
	return e.Err
}

// StatusError is a non-2xx answer from a media host.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}
