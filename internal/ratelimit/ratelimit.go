// Package ratelimit tracks the remote rate-limit window of a single account.
package ratelimit

import (
	"time"

	"github.com/tmdnlcl/relay-worker/api/types"
)

// CanPoll reports whether a poll may be issued at now. It is false only while
// the remote reported an exhausted window that has not reset yet.
func CanPoll(rl types.RateLimit, now time.Time) bool {
	if rl.Remaining == nil || *rl.Remaining > 0 {
		return true
	}
	if rl.ResetAt == nil {
		return true
	}
	return !now.Before(*rl.ResetAt)
}

// Record returns the window after a remote call. A nil meta means the call did
// not report a window and rl is returned untouched.
func Record(rl types.RateLimit, meta *types.RateLimitMeta) types.RateLimit {
	if meta == nil {
		return rl
	}
	remaining := meta.Remaining
	reset := meta.ResetAt
	return types.RateLimit{Remaining: &remaining, ResetAt: &reset}
}

// Until returns how long the account stays throttled, or zero.
func Until(rl types.RateLimit, now time.Time) time.Duration {
	if CanPoll(rl, now) {
		return 0
	}
	return rl.ResetAt.Sub(now)
}
