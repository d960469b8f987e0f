package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tmdnlcl/relay-worker/api/types"
)

// SaveTweet archives t with its attachments. Saving the same tweet again
// replaces the previous copy.
func (s *Store) SaveTweet(ctx context.Context, t types.Tweet) error {
	model := TweetModel{ID: t.ID, AccountID: t.AccountID, SubmittedAt: t.SubmittedAt, Content: t.Content}
	var written []string
	for i, a := range t.Attachments {
		file, err := s.blobs.Put(a.File, a.Ext)
		if err != nil {
			s.removeBlobs(written)
			return fmt.Errorf("storing attachment %d of tweet %d: %w", i, t.ID, err)
		}
		written = append(written, file)
		thumb, err := s.blobs.Put(a.Thumbnail, "jpg")
		if err != nil {
			s.removeBlobs(written)
			return fmt.Errorf("storing thumbnail %d of tweet %d: %w", i, t.ID, err)
		}
		written = append(written, thumb)
		model.Attachments = append(model.Attachments, AttachmentModel{
			Position:      i,
			Type:          string(a.Type),
			Ext:           a.Ext,
			FileBlob:      file,
			ThumbnailBlob: thumb,
		})
	}

	var stale []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if stale, err = deleteAttachments(tx, []int64{t.ID}); err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&model).Error
	})
	if err != nil {
		s.removeBlobs(written)
		return err
	}
	s.removeBlobs(stale)
	return nil
}

// ListTweets returns the archived tweets of an account, newest first. Blob
// bytes are not loaded.
func (s *Store) ListTweets(ctx context.Context, accountID int64) ([]types.Tweet, error) {
	var models []TweetModel
	err := s.db.WithContext(ctx).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("account_id = ?", accountID).
		Order("submitted_at DESC").Order("id DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	tweets := make([]types.Tweet, 0, len(models))
	for _, m := range models {
		tweets = append(tweets, toTweet(m))
	}
	return tweets, nil
}

// GetTweet loads one archived tweet with its attachment bytes.
func (s *Store) GetTweet(ctx context.Context, accountID, tweetID int64) (types.Tweet, error) {
	var m TweetModel
	err := s.db.WithContext(ctx).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ? AND account_id = ?", tweetID, accountID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Tweet{}, ErrTweetNotFound
		}
		return types.Tweet{}, err
	}
	t := toTweet(m)
	for i, a := range m.Attachments {
		if t.Attachments[i].File, err = s.blobs.Get(a.FileBlob); err != nil {
			return types.Tweet{}, fmt.Errorf("reading attachment %d of tweet %d: %w", i, tweetID, err)
		}
		if t.Attachments[i].Thumbnail, err = s.blobs.Get(a.ThumbnailBlob); err != nil {
			return types.Tweet{}, fmt.Errorf("reading thumbnail %d of tweet %d: %w", i, tweetID, err)
		}
	}
	return t, nil
}

// DeleteTweet removes an archived tweet and its blobs.
func (s *Store) DeleteTweet(ctx context.Context, accountID, tweetID int64) error {
	var blobs []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND account_id = ?", tweetID, accountID).Delete(&TweetModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTweetNotFound
		}
		var err error
		blobs, err = deleteAttachments(tx, []int64{tweetID})
		return err
	})
	if err != nil {
		return err
	}
	s.removeBlobs(blobs)
	return nil
}

func toTweet(m TweetModel) types.Tweet {
	t := types.Tweet{
		ID:          m.ID,
		AccountID:   m.AccountID,
		SubmittedAt: m.SubmittedAt,
		Content:     m.Content,
		Attachments: make([]types.Attachment, 0, len(m.Attachments)),
	}
	for _, a := range m.Attachments {
		t.Attachments = append(t.Attachments, types.Attachment{ID: a.ID, Type: types.AttachmentType(a.Type), Ext: a.Ext})
	}
	return t
}

// deleteAttachments drops the attachment rows of the given tweets and returns
// the blobs they referenced.
func deleteAttachments(tx *gorm.DB, tweetIDs []int64) ([]string, error) {
	var rows []AttachmentModel
	if err := tx.Where("tweet_id IN ?", tweetIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if err := tx.Where("tweet_id IN ?", tweetIDs).Delete(&AttachmentModel{}).Error; err != nil {
		return nil, err
	}
	blobs := make([]string, 0, 2*len(rows))
	for _, r := range rows {
		blobs = append(blobs, r.FileBlob, r.ThumbnailBlob)
	}
	return blobs, nil
}

func (s *Store) removeBlobs(names []string) {
	for _, n := range names {
		if err := s.blobs.Delete(n); err != nil {
			logrus.WithError(err).Warnf("Failed to remove blob %s", n)
		}
	}
}
