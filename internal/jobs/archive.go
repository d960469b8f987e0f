package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tmdnlcl/relay-worker/api/types"
	"github.com/tmdnlcl/relay-worker/internal/classify"
	"github.com/tmdnlcl/relay-worker/internal/jobs/stats"
	"github.com/tmdnlcl/relay-worker/internal/jobs/twitter"
)

type ArchiveAccounts interface {
	GetAccount(ctx context.Context, id int64) (types.Account, error)
	RegisterAccount(ctx context.Context, id int64, token, secret string) (types.Account, error)
	SetMode(ctx context.Context, id int64, mode types.Mode) (types.Account, error)
}

// Archive handles what an account owner does with archived tweets.
type Archive struct {
	accounts   ArchiveAccounts
	tweets     TweetStore
	auth       twitter.Authenticator
	classifier *classify.Classifier
	publisher  Publisher
	collector  *stats.StatsCollector
}

func NewArchive(accounts ArchiveAccounts, tweets TweetStore, auth twitter.Authenticator, c *classify.Classifier, collector *stats.StatsCollector) *Archive {
	return &Archive{accounts: accounts, tweets: tweets, auth: auth, classifier: c, collector: collector}
}

func (a *Archive) Register(ctx context.Context, id int64, token, secret string) (types.Account, error) {
	if id <= 0 || token == "" || secret == "" {
		return types.Account{}, fmt.Errorf("account id, token and secret are required")
	}
	return a.accounts.RegisterAccount(ctx, id, token, secret)
}

func (a *Archive) SetMode(ctx context.Context, id int64, mode types.Mode) (types.Account, error) {
	if !mode.Valid() {
		return types.Account{}, fmt.Errorf("%w: %d", ErrInvalidMode, int(mode))
	}
	return a.accounts.SetMode(ctx, id, mode)
}

func (a *Archive) Account(ctx context.Context, id int64) (types.Account, error) {
	return a.accounts.GetAccount(ctx, id)
}

// List returns the archived tweets of an account, newest first.
func (a *Archive) List(ctx context.Context, accountID int64) ([]types.Tweet, error) {
	if _, err := a.accounts.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return a.tweets.ListTweets(ctx, accountID)
}

// Post publishes an archived tweet and drops it from the archive. A non-nil
// content replaces the stored text.
func (a *Archive) Post(ctx context.Context, accountID, tweetID int64, content *string) (int64, error) {
	account, err := a.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	tweet, err := a.tweets.GetTweet(ctx, accountID, tweetID)
	if err != nil {
		return 0, err
	}
	if content != nil {
		tweet.Content = *content
	}
	tweet.Content = strings.TrimSpace(a.classifier.StripPrefix(strings.TrimSpace(tweet.Content)))
	if tweet.Content == "" && len(tweet.Attachments) == 0 {
		return 0, ErrEmptyTweet
	}

	client := a.auth.Authenticate(account.Token, account.TokenSecret)
	posted, err := a.publisher.Publish(ctx, client, tweet)
	if err != nil {
		return 0, &TweetProcessingError{TweetID: tweetID, Stage: StagePublish, Err: err}
	}
	if err := a.tweets.DeleteTweet(ctx, accountID, tweetID); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"account_id": accountID, "tweet_id": tweetID}).Error("Posted tweet could not be removed from the archive")
		return posted, err
	}
	a.collector.Add("api", stats.ArchivePosted, 1)
	return posted, nil
}

// Delete discards an archived tweet.
func (a *Archive) Delete(ctx context.Context, accountID, tweetID int64) error {
	if err := a.tweets.DeleteTweet(ctx, accountID, tweetID); err != nil {
		return err
	}
	a.collector.Add("api", stats.ArchiveDeleted, 1)
	return nil
}
