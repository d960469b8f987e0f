package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tmdnlcl/relay-worker/api/types"
)

// RegisterAccount creates the account, or refreshes the token of an existing
// one. New accounts start in archive mode.
func (s *Store) RegisterAccount(ctx context.Context, id int64, token, secret string) (types.Account, error) {
	sealedToken, err := s.sealer.Seal(token)
	if err != nil {
		return types.Account{}, err
	}
	sealedSecret, err := s.sealer.Seal(secret)
	if err != nil {
		return types.Account{}, err
	}

	var m AccountModel
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where(AccountModel{ID: id}).
			Attrs(AccountModel{OAuthToken: sealedToken, OAuthTokenSecret: sealedSecret, Mode: int(types.ModeArchive)}).
			FirstOrCreate(&m).Error
		if err != nil {
			return err
		}
		if current, err := m.snapshot(s.sealer); err == nil && current.Token == token && current.TokenSecret == secret {
			return nil
		}
		if err := tx.Model(&m).Updates(map[string]any{"oauth_token": sealedToken, "oauth_token_secret": sealedSecret}).Error; err != nil {
			return err
		}
		return tx.First(&m, id).Error
	})
	if err != nil {
		return types.Account{}, err
	}
	return m.snapshot(s.sealer)
}

func (s *Store) GetAccount(ctx context.Context, id int64) (types.Account, error) {
	var m AccountModel
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Account{}, ErrAccountNotFound
		}
		return types.Account{}, err
	}
	return m.snapshot(s.sealer)
}

// ListAccountIDs returns every account id, least recently updated first.
func (s *Store) ListAccountIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&AccountModel{}).Order("last_update ASC").Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

func (s *Store) CountAccounts(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&AccountModel{}).Count(&n).Error
	return n, err
}

// DeleteAccount removes the account with its archived tweets and their blobs.
func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	var blobs []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tweetIDs []int64
		if err := tx.Model(&TweetModel{}).Where("account_id = ?", id).Pluck("id", &tweetIDs).Error; err != nil {
			return err
		}
		if len(tweetIDs) > 0 {
			var err error
			if blobs, err = deleteAttachments(tx, tweetIDs); err != nil {
				return err
			}
			if err := tx.Where("account_id = ?", id).Delete(&TweetModel{}).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&AccountModel{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAccountNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.removeBlobs(blobs)
	return nil
}

// SetMode switches the account mode and returns the new snapshot.
func (s *Store) SetMode(ctx context.Context, id int64, mode types.Mode) (types.Account, error) {
	return s.update(ctx, id, func(tx *gorm.DB, m *AccountModel) map[string]any {
		return map[string]any{"mode": int(mode)}
	})
}

// UpdatePoll stores the outcome of a polling cycle. The cursor never moves
// back: a lower or nil cursor keeps the stored one.
func (s *Store) UpdatePoll(ctx context.Context, id int64, cursor *int64, rl types.RateLimit) (types.Account, error) {
	return s.update(ctx, id, func(tx *gorm.DB, m *AccountModel) map[string]any {
		fields := map[string]any{
			"rate_limit_remaining": rl.Remaining,
			"rate_limit_reset":     rl.ResetAt,
			"last_update":          time.Now(),
		}
		if cursor != nil && (m.LastTweetID == nil || *cursor > *m.LastTweetID) {
			fields["last_tweet_id"] = *cursor
		}
		return fields
	})
}

func (s *Store) update(ctx context.Context, id int64, fields func(*gorm.DB, *AccountModel) map[string]any) (types.Account, error) {
	var m AccountModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&m, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if err := tx.Model(&AccountModel{}).Where("id = ?", id).Updates(fields(tx, &m)).Error; err != nil {
			return err
		}
		return tx.First(&m, id).Error
	})
	if err != nil {
		return types.Account{}, err
	}
	return m.snapshot(s.sealer)
}
