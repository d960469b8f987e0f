package jobs

import (
	"errors"
	"fmt"
	"time"
)

// Stage names where a tweet can fail.
const (
	StageMedia   = "media"
	StagePublish = "publish"
	StageArchive = "archive"
	StageDelete  = "delete"
)

// TweetProcessingError aborts one tweet. The cycle carries on with the next
// tweet and the cursor still moves past it.
type TweetProcessingError struct {
	TweetID int64
	Stage   string
	Err     error
}

func (e *TweetProcessingError) Error() string {
	return fmt.Sprintf("tweet %d: %s: %v", e.TweetID, e.Stage, e.Err)
}

func (e *TweetProcessingError) Unwrap() error {
	return e.Err
}

// FatalAccountError means the account was rejected by the remote and removed.
type FatalAccountError struct {
	AccountID int64
	Err       error
}

func (e *FatalAccountError) Error() string {
	return fmt.Sprintf("account %d removed: %v", e.AccountID, e.Err)
}

func (e *FatalAccountError) Unwrap() error {
	return e.Err
}

// ThrottledError reports a cycle skipped because the account's window is
// exhausted.
type ThrottledError struct {
	AccountID int64
	Wait      time.Duration
	Until     time.Time
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("account %d throttled for %v until %s", e.AccountID, e.Wait.Round(time.Second), e.Until.Format(time.RFC3339))
}

var (
	// ErrInvalidMode is returned when switching an account to an unknown mode.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrEmptyTweet is returned when an archived tweet has nothing to post.
	ErrEmptyTweet = errors.New("tweet has no content")
)
