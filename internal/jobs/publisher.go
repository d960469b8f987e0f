package jobs

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tmdnlcl/relay-worker/api/types"
	"github.com/tmdnlcl/relay-worker/internal/jobs/twitter"
)

// Publisher re-uploads the attachments of a tweet and posts it.
type Publisher struct{}

// Publish uploads every attachment in order, then posts the content with the
// resulting media ids. It returns the id of the new status.
func (Publisher) Publish(ctx context.Context, client twitter.Client, tweet types.Tweet) (int64, error) {
	mediaIDs := make([]int64, 0, len(tweet.Attachments))
	for i, a := range tweet.Attachments {
		var (
			id  int64
			err error
		)
		if a.Type == types.AttachmentVideo {
			id, err = client.UploadVideo(ctx, a.File, a.MimeType())
		} else {
			id, err = client.UploadMedia(ctx, a.File, a.MimeType())
		}
		if err != nil {
			return 0, fmt.Errorf("uploading attachment %d: %w", i, err)
		}
		mediaIDs = append(mediaIDs, id)
	}

	posted, err := client.PostStatus(ctx, tweet.Content, mediaIDs)
	if err != nil {
		return 0, err
	}
	logrus.WithFields(logrus.Fields{"tweet_id": tweet.ID, "posted_id": posted, "media": len(mediaIDs)}).Debug("Published tweet")
	return posted, nil
}
