package jobs

import (
	"context"
	"time"

	"github.com/tmdnlcl/relay-worker/api/types"
	"github.com/tmdnlcl/relay-worker/internal/classify"
	"github.com/tmdnlcl/relay-worker/internal/media"
)

// Resolver downloads the media of a tweet.
type Resolver interface {
	Resolve(ctx context.Context, tweet types.RawTweet) ([]types.Attachment, error)
}

// Transformer turns a fetched tweet into the tweet to publish or archive.
type Transformer struct {
	classifier *classify.Classifier
	resolver   Resolver
	now        func() time.Time
}

func NewTransformer(c *classify.Classifier, r Resolver) *Transformer {
	return &Transformer{classifier: c, resolver: r, now: time.Now}
}

// Transform returns false when raw does not follow the convention of mode;
// nothing is downloaded in that case. Media failures are returned as a
// TweetProcessingError.
func (t *Transformer) Transform(ctx context.Context, account types.Account, raw types.RawTweet) (types.Tweet, bool, error) {
	if !t.classifier.Match(account.Mode, raw.Text) {
		return types.Tweet{}, false, nil
	}

	attachments, err := t.resolver.Resolve(ctx, raw)
	if err != nil {
		return types.Tweet{}, true, &TweetProcessingError{TweetID: raw.ID, Stage: StageMedia, Err: err}
	}

	text := media.StripShortURLs(raw.Text, raw.Media)
	return types.Tweet{
		ID:          raw.ID,
		AccountID:   account.ID,
		SubmittedAt: t.now(),
		Content:     t.classifier.Render(account.Mode, text),
		Attachments: attachments,
	}, true, nil
}
