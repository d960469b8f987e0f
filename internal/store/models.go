package store

import (
	"fmt"
	"time"

	"github.com/tmdnlcl/relay-worker/api/types"
)

// AccountModel is a registered user. The id is the remote user id.
type AccountModel struct {
	ID                 int64  `gorm:"primaryKey;autoIncrement:false"`
	OAuthToken         string `gorm:"column:oauth_token;not null"`
	OAuthTokenSecret   string `gorm:"column:oauth_token_secret;not null"`
	LastTweetID        *int64
	RateLimitRemaining *int
	RateLimitReset     *time.Time
	Mode               int       `gorm:"not null;default:2"`
	LastUpdate         time.Time `gorm:"autoUpdateTime;index"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

func (m AccountModel) snapshot(sealer *TokenSealer) (types.Account, error) {
	token, err := sealer.Open(m.OAuthToken)
	if err != nil {
		return types.Account{}, fmt.Errorf("account %d: %w", m.ID, err)
	}
	secret, err := sealer.Open(m.OAuthTokenSecret)
	if err != nil {
		return types.Account{}, fmt.Errorf("account %d: %w", m.ID, err)
	}
	return types.Account{
		ID:          m.ID,
		Token:       token,
		TokenSecret: secret,
		LastTweetID: m.LastTweetID,
		RateLimit: types.RateLimit{
			Remaining: m.RateLimitRemaining,
			ResetAt:   m.RateLimitReset,
		},
		Mode: types.Mode(m.Mode),
	}, nil
}

// TweetModel is an archived tweet waiting for confirmation.
type TweetModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement:false"`
	AccountID   int64     `gorm:"index;not null"`
	SubmittedAt time.Time `gorm:"autoCreateTime;index"`
	Content     string
	Attachments []AttachmentModel `gorm:"foreignKey:TweetID"`
}

func (TweetModel) TableName() string {
	return "tweets"
}

// AttachmentModel references the blobs of one media item.
type AttachmentModel struct {
	ID            uint  `gorm:"primaryKey"`
	TweetID       int64 `gorm:"index;not null"`
	Position      int
	Type          string
	Ext           string
	ThumbnailBlob string
	FileBlob      string
}

func (AttachmentModel) TableName() string {
	return "attachments"
}

// StatsModel is the singleton liveness row.
type StatsModel struct {
	ID         uint `gorm:"primaryKey"`
	LastUpdate *time.Time
}

func (StatsModel) TableName() string {
	return "stats"
}
