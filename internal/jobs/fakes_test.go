package jobs_test

import (
	"context"
	"errors"
	"sync"

	"github.com/tmdnlcl/relay-worker/api/types"
	"github.com/tmdnlcl/relay-worker/internal/jobs/twitter"
)

type posted struct {
	text     string
	mediaIDs []int64
}

// fakeClient is an in-memory remote for one account.
type fakeClient struct {
	sync.Mutex
	tweets     []types.RawTweet
	fetchErr   error
	postErr    error
	meta       *types.RateLimitMeta
	screenName string

	fetches  int
	sinceIDs []int64
	queries  []string
	uploads  []string
	posts    []posted
	deleted  []int64
	nextID   int64
}

func (f *fakeClient) FetchTimeline(_ context.Context, _ int64, sinceID int64) ([]types.RawTweet, error) {
	f.Lock()
	defer f.Unlock()
	f.fetches++
	f.sinceIDs = append(f.sinceIDs, sinceID)
	return f.tweets, f.fetchErr
}

func (f *fakeClient) Search(_ context.Context, query string, sinceID int64) ([]types.RawTweet, error) {
	f.Lock()
	defer f.Unlock()
	f.fetches++
	f.queries = append(f.queries, query)
	f.sinceIDs = append(f.sinceIDs, sinceID)
	return f.tweets, f.fetchErr
}

func (f *fakeClient) GetUserInfo(_ context.Context, userID int64) (twitter.UserInfo, error) {
	return twitter.UserInfo{ID: userID, ScreenName: f.screenName}, nil
}

func (f *fakeClient) UploadMedia(_ context.Context, data []byte, mimeType string) (int64, error) {
	f.Lock()
	defer f.Unlock()
	f.uploads = append(f.uploads, "media:"+mimeType+":"+string(data))
	f.nextID++
	return f.nextID, nil
}

func (f *fakeClient) UploadVideo(_ context.Context, data []byte, mimeType string) (int64, error) {
	f.Lock()
	defer f.Unlock()
	f.uploads = append(f.uploads, "video:"+mimeType+":"+string(data))
	f.nextID++
	return f.nextID, nil
}

func (f *fakeClient) PostStatus(_ context.Context, text string, mediaIDs []int64) (int64, error) {
	f.Lock()
	defer f.Unlock()
	if f.postErr != nil {
		return 0, f.postErr
	}
	f.posts = append(f.posts, posted{text: text, mediaIDs: mediaIDs})
	f.nextID++
	return 1000 + f.nextID, nil
}

func (f *fakeClient) DeleteStatus(_ context.Context, id int64) error {
	f.Lock()
	defer f.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeClient) RateLimit() *types.RateLimitMeta {
	return f.meta
}

type fakeAuth struct {
	client *fakeClient
	calls  int
}

func (a *fakeAuth) Authenticate(token, secret string) twitter.Client {
	a.calls++
	return a.client
}

// fakeFetcher serves media bytes by URL.
type fakeFetcher map[string][]byte

func (f fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	if b, ok := f[url]; ok {
		return b, nil
	}
	return nil, errors.New("connection reset")
}
