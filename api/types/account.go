package types

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects what happens to a matching tweet.
type Mode int

const (
	// ModeInstant rewrites and republishes a tweet right away.
	ModeInstant Mode = 1
	// ModeArchive stores a tweet until its owner confirms or discards it.
	ModeArchive Mode = 2
)

func (m Mode) String() string {
	switch m {
	case ModeInstant:
		return "instant"
	case ModeArchive:
		return "archive"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func (m Mode) Valid() bool {
	return m == ModeInstant || m == ModeArchive
}

// ParseMode accepts either the name or the numeric value of a mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "instant", "1":
		return ModeInstant, nil
	case "archive", "2":
		return ModeArchive, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// RateLimit is the last remote rate-limit window observed for an account.
// Both fields are nil until the remote reports them.
type RateLimit struct {
	Remaining *int       `json:"remaining,omitempty"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
}

// RateLimitMeta is what a single remote call reports about the window.
type RateLimitMeta struct {
	Remaining int
	ResetAt   time.Time
}

// Account is an immutable snapshot of a registered user.
type Account struct {
	ID          int64     `json:"id"`
	Token       string    `json:"-"`
	TokenSecret string    `json:"-"`
	LastTweetID *int64    `json:"last_tweet_id,omitempty"`
	RateLimit   RateLimit `json:"rate_limit"`
	Mode        Mode      `json:"mode"`
}

// Cursor returns the last processed tweet id, or 0 when nothing was processed yet.
func (a Account) Cursor() int64 {
	if a.LastTweetID == nil {
		return 0
	}
	return *a.LastTweetID
}
