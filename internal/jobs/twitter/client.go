// Package twitter talks to the v1.1 REST API on behalf of one account.
package twitter

import (
	"context"

	"github.com/tmdnlcl/relay-worker/api/types"
)

// UserInfo is the subset of a user profile the relay needs.
type UserInfo struct {
	ID         int64
	ScreenName string
}

// Client is the remote capability used by the workers. Every call may update
// the rate-limit window returned by RateLimit.
type Client interface {
	FetchTimeline(ctx context.Context, userID, sinceID int64) ([]types.RawTweet, error)
	Search(ctx context.Context, query string, sinceID int64) ([]types.RawTweet, error)
	GetUserInfo(ctx context.Context, userID int64) (UserInfo, error)
	UploadMedia(ctx context.Context, data []byte, mimeType string) (int64, error)
	UploadVideo(ctx context.Context, data []byte, mimeType string) (int64, error)
	PostStatus(ctx context.Context, text string, mediaIDs []int64) (int64, error)
	DeleteStatus(ctx context.Context, id int64) error
	// RateLimit is the window reported by the last call, or nil when that
	// call did not report one.
	RateLimit() *types.RateLimitMeta
}

// Authenticator creates clients bound to an account's access token.
type Authenticator interface {
	Authenticate(token, tokenSecret string) Client
}
