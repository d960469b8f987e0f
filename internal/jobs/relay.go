package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tmdnlcl/relay-worker/api/types"
	"github.com/tmdnlcl/relay-worker/internal/config"
	"github.com/tmdnlcl/relay-worker/internal/jobs/stats"
	"github.com/tmdnlcl/relay-worker/internal/jobs/twitter"
	"github.com/tmdnlcl/relay-worker/internal/metrics"
	"github.com/tmdnlcl/relay-worker/internal/ratelimit"
	"github.com/tmdnlcl/relay-worker/internal/store"
)

type AccountStore interface {
	GetAccount(ctx context.Context, id int64) (types.Account, error)
	DeleteAccount(ctx context.Context, id int64) error
	UpdatePoll(ctx context.Context, id int64, cursor *int64, rl types.RateLimit) (types.Account, error)
}

type TweetStore interface {
	SaveTweet(ctx context.Context, t types.Tweet) error
	GetTweet(ctx context.Context, accountID, tweetID int64) (types.Tweet, error)
	ListTweets(ctx context.Context, accountID int64) ([]types.Tweet, error)
	DeleteTweet(ctx context.Context, accountID, tweetID int64) error
}

// StatsToucher records that a cycle completed.
type StatsToucher interface {
	Touch(ctx context.Context, now time.Time) error
}

type RelayOptions struct {
	APIMode             string
	SearchKeyword       string
	ArchiveDeleteRemote bool
}

// Relay runs one polling cycle for an account: fetch new tweets, rewrite the
// matching ones, publish or archive them and move the cursor.
type Relay struct {
	accounts    AccountStore
	tweets      TweetStore
	liveness    StatsToucher
	auth        twitter.Authenticator
	transformer *Transformer
	publisher   Publisher
	collector   *stats.StatsCollector
	opts        RelayOptions
	now         func() time.Time
}

func NewRelay(accounts AccountStore, tweets TweetStore, liveness StatsToucher, auth twitter.Authenticator, t *Transformer, c *stats.StatsCollector, opts RelayOptions) *Relay {
	return &Relay{
		accounts:    accounts,
		tweets:      tweets,
		liveness:    liveness,
		auth:        auth,
		transformer: t,
		collector:   c,
		opts:        opts,
		now:         time.Now,
	}
}

// ProcessAccount runs the cycle of one account. A removed account yields a
// *FatalAccountError, a throttled one a *ThrottledError. Per tweet failures
// are logged and never returned.
func (r *Relay) ProcessAccount(ctx context.Context, workerID string, accountID int64) error {
	start := time.Now()
	defer metrics.ObserveCycle(start)

	log := logrus.WithFields(logrus.Fields{"worker": workerID, "account_id": accountID})

	account, err := r.accounts.GetAccount(ctx, accountID)
	if errors.Is(err, store.ErrAccountNotFound) {
		log.Debug("Account is gone, skipping")
		return nil
	}
	if err != nil {
		r.collector.Add(workerID, stats.CycleErrors, 1)
		return fmt.Errorf("loading account %d: %w", accountID, err)
	}

	now := r.now()
	if wait := ratelimit.Until(account.RateLimit, now); wait > 0 {
		r.collector.Add(workerID, stats.Throttled, 1)
		r.touch(ctx, log)
		return &ThrottledError{AccountID: accountID, Wait: wait, Until: now.Add(wait)}
	}

	client := r.auth.Authenticate(account.Token, account.TokenSecret)
	batch, err := r.fetch(ctx, client, account)
	rl := ratelimit.Record(account.RateLimit, client.RateLimit())

	switch {
	case errors.Is(err, twitter.ErrAuthInvalid):
		return r.remove(ctx, workerID, account, err, log)
	case errors.Is(err, twitter.ErrRateLimited):
		log.WithError(err).Info("Rate limited, treating as an empty batch")
		r.collector.Add(workerID, stats.RateLimited, 1)
		batch = nil
	case err != nil:
		r.collector.Add(workerID, stats.CycleErrors, 1)
		if _, uerr := r.accounts.UpdatePoll(ctx, accountID, nil, rl); uerr != nil {
			log.WithError(uerr).Warn("Failed to store rate limit")
		}
		return fmt.Errorf("fetching tweets of account %d: %w", accountID, err)
	}

	r.collector.Add(workerID, stats.TweetsFetched, uint(len(batch)))
	cursor := account.Cursor()
	for _, raw := range batch {
		if raw.ID > cursor {
			cursor = raw.ID
		}
		terr := r.handle(ctx, workerID, client, account, raw)
		if terr == nil {
			continue
		}
		if errors.Is(terr, twitter.ErrAuthInvalid) {
			return r.remove(ctx, workerID, account, terr, log)
		}
		r.collector.Add(workerID, stats.TweetErrors, 1)
		log.WithError(terr).WithField("tweet_id", raw.ID).Warn("Dropping tweet")
	}

	var next *int64
	if cursor > 0 {
		next = &cursor
	}
	if _, err := r.accounts.UpdatePoll(ctx, accountID, next, rl); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			log.Info("Account removed during the cycle")
			return nil
		}
		r.collector.Add(workerID, stats.CycleErrors, 1)
		return fmt.Errorf("saving account %d: %w", accountID, err)
	}

	r.collector.Add(workerID, stats.Cycles, 1)
	r.touch(ctx, log)
	log.WithField("tweets", len(batch)).Debugf("Cycle done in %v", time.Since(start))
	return nil
}

func (r *Relay) fetch(ctx context.Context, client twitter.Client, account types.Account) ([]types.RawTweet, error) {
	if r.opts.APIMode != config.APIModeSearch {
		return client.FetchTimeline(ctx, account.ID, account.Cursor())
	}
	info, err := client.GetUserInfo(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	query := strings.TrimSpace(fmt.Sprintf("from:%s %s", info.ScreenName, r.opts.SearchKeyword))
	return client.Search(ctx, query, account.Cursor())
}

func (r *Relay) handle(ctx context.Context, workerID string, client twitter.Client, account types.Account, raw types.RawTweet) error {
	tweet, matched, err := r.transformer.Transform(ctx, account, raw)
	if !matched {
		return nil
	}
	r.collector.Add(workerID, stats.TweetsMatched, 1)
	if err != nil {
		r.collector.Add(workerID, stats.MediaErrors, 1)
		return err
	}

	log := logrus.WithFields(logrus.Fields{"worker": workerID, "account_id": account.ID, "tweet_id": raw.ID})
	switch account.Mode {
	case types.ModeInstant:
		if _, err := r.publisher.Publish(ctx, client, tweet); err != nil {
			return &TweetProcessingError{TweetID: raw.ID, Stage: StagePublish, Err: err}
		}
		if err := client.DeleteStatus(ctx, raw.ID); err != nil {
			return &TweetProcessingError{TweetID: raw.ID, Stage: StageDelete, Err: err}
		}
		r.collector.Add(workerID, stats.TweetsPublished, 1)
		log.Info("Republished tweet")
	case types.ModeArchive:
		if err := r.tweets.SaveTweet(ctx, tweet); err != nil {
			return &TweetProcessingError{TweetID: raw.ID, Stage: StageArchive, Err: err}
		}
		r.collector.Add(workerID, stats.TweetsArchived, 1)
		log.Info("Archived tweet")
		if r.opts.ArchiveDeleteRemote {
			if err := client.DeleteStatus(ctx, raw.ID); err != nil {
				return &TweetProcessingError{TweetID: raw.ID, Stage: StageDelete, Err: err}
			}
		}
	}
	return nil
}

func (r *Relay) remove(ctx context.Context, workerID string, account types.Account, cause error, log *logrus.Entry) error {
	log.WithError(cause).Warn("Credentials rejected, removing account")
	r.collector.Add(workerID, stats.AccountsRemoved, 1)
	if err := r.accounts.DeleteAccount(ctx, account.ID); err != nil && !errors.Is(err, store.ErrAccountNotFound) {
		return fmt.Errorf("removing account %d: %w", account.ID, err)
	}
	return &FatalAccountError{AccountID: account.ID, Err: cause}
}

func (r *Relay) touch(ctx context.Context, log *logrus.Entry) {
	if r.liveness == nil {
		return
	}
	if err := r.liveness.Touch(ctx, r.now()); err != nil {
		log.WithError(err).Warn("Failed to update stats")
	}
}
