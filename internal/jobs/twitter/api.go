package twitter

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	gotwitter "github.com/dghubble/go-twitter/twitter"
	"github.com/dghubble/oauth1"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tmdnlcl/relay-worker/api/types"
	"github.com/tmdnlcl/relay-worker/internal/config"
)

const (
	timelinePageSize = 200
	searchPageSize   = 100
	tweetModeFull    = "extended"

	codeStatusNotFound = 144
)

// OAuthAuthenticator signs every request with the application credentials
// and the account's access token.
type OAuthAuthenticator struct {
	config *oauth1.Config
	opts   *Options
	users  *userCache
}

func NewAuthenticator(cfg config.TwitterConfig, opts ...Option) (*OAuthAuthenticator, error) {
	o, err := NewOptions(opts...)
	if err != nil {
		return nil, err
	}
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		logrus.Warn("Twitter API key or secret not set, every call will be rejected")
	}
	return &OAuthAuthenticator{
		config: oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret),
		opts:   o,
		users:  newUserCache(o.UserCacheSize, o.UserCacheTTL),
	}, nil
}

// Limiter is the pacer shared by every client of the authenticator.
func (a *OAuthAuthenticator) Limiter() *rate.Limiter {
	return a.opts.Limiter
}

// ClientTimeout is the timeout set on every signed client.
func (a *OAuthAuthenticator) ClientTimeout() time.Duration {
	return a.opts.Timeout
}

func (a *OAuthAuthenticator) Authenticate(token, tokenSecret string) Client {
	ctx := oauth1.NoContext
	if a.opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, a.opts.HTTPClient)
	}
	httpClient := a.config.Client(ctx, oauth1.NewToken(token, tokenSecret))
	httpClient.Timeout = a.opts.Timeout

	return &apiClient{
		api:      gotwitter.NewClient(httpClient),
		uploader: &uploader{http: httpClient, url: a.opts.UploadURL, chunkSize: a.opts.ChunkSize},
		opts:     a.opts,
		users:    a.users,
	}
}

type apiClient struct {
	api      *gotwitter.Client
	uploader *uploader
	opts     *Options
	users    *userCache
	last     *types.RateLimitMeta
}

func (c *apiClient) RateLimit() *types.RateLimitMeta {
	return c.last
}

func (c *apiClient) wait(ctx context.Context) error {
	return c.opts.Limiter.Wait(ctx)
}

// observe keeps the window reported by resp, if any.
func (c *apiClient) observe(resp *http.Response) {
	c.last = rateLimitFromHeader(resp)
}

func rateLimitFromHeader(resp *http.Response) *types.RateLimitMeta {
	if resp == nil {
		return nil
	}
	remaining, err := strconv.Atoi(resp.Header.Get("x-rate-limit-remaining"))
	if err != nil {
		return nil
	}
	reset, err := strconv.ParseInt(resp.Header.Get("x-rate-limit-reset"), 10, 64)
	if err != nil {
		return nil
	}
	return &types.RateLimitMeta{Remaining: remaining, ResetAt: time.Unix(reset, 0).UTC()}
}

func (c *apiClient) FetchTimeline(ctx context.Context, userID, sinceID int64) ([]types.RawTweet, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	tweets, resp, err := c.api.Timelines.UserTimeline(&gotwitter.UserTimelineParams{
		UserID:          userID,
		SinceID:         sinceID,
		Count:           timelinePageSize,
		TweetMode:       tweetModeFull,
		IncludeRetweets: gotwitter.Bool(false),
	})
	c.observe(resp)
	if err := classify("user timeline", resp, err); err != nil {
		return nil, err
	}
	return toRawTweets(tweets), nil
}

func (c *apiClient) Search(ctx context.Context, query string, sinceID int64) ([]types.RawTweet, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	search, resp, err := c.api.Search.Tweets(&gotwitter.SearchTweetParams{
		Query:      query,
		ResultType: "recent",
		SinceID:    sinceID,
		Count:      searchPageSize,
		TweetMode:  tweetModeFull,
	})
	c.observe(resp)
	if err := classify("search", resp, err); err != nil {
		return nil, err
	}
	if search == nil {
		return nil, nil
	}
	return toRawTweets(search.Statuses), nil
}

func (c *apiClient) GetUserInfo(ctx context.Context, userID int64) (UserInfo, error) {
	if info, ok := c.users.Get(userID); ok {
		return info, nil
	}
	if err := c.wait(ctx); err != nil {
		return UserInfo{}, err
	}
	user, resp, err := c.api.Users.Show(&gotwitter.UserShowParams{UserID: userID})
	c.observe(resp)
	if err := classify("users show", resp, err); err != nil {
		return UserInfo{}, err
	}
	info := UserInfo{ID: user.ID, ScreenName: user.ScreenName}
	c.users.Set(info)
	return info, nil
}

func (c *apiClient) UploadMedia(ctx context.Context, data []byte, mimeType string) (int64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	return c.uploader.simple(ctx, data, mimeType)
}

func (c *apiClient) UploadVideo(ctx context.Context, data []byte, mimeType string) (int64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	return c.uploader.chunked(ctx, data, mimeType)
}

func (c *apiClient) PostStatus(ctx context.Context, text string, mediaIDs []int64) (int64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	var params *gotwitter.StatusUpdateParams
	if len(mediaIDs) > 0 {
		params = &gotwitter.StatusUpdateParams{MediaIds: mediaIDs}
	}
	tweet, resp, err := c.api.Statuses.Update(text, params)
	c.observe(resp)
	if err := classify("status update", resp, err); err != nil {
		return 0, err
	}
	return tweet.ID, nil
}

func (c *apiClient) DeleteStatus(ctx context.Context, id int64) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, resp, err := c.api.Statuses.Destroy(id, nil)
	c.observe(resp)
	if isStatusNotFound(err) {
		logrus.Debugf("Status %d already gone", id)
		return nil
	}
	return classify("status destroy", resp, err)
}

func isStatusNotFound(err error) bool {
	var apiErr gotwitter.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, d := range apiErr.Errors {
		if d.Code == codeStatusNotFound {
			return true
		}
	}
	return false
}
