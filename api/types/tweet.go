package types

import "time"

type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// VideoVariant is one encoding offered for a video.
type VideoVariant struct {
	ContentType string
	Bitrate     int
	URL         string
}

// Media describes one attachment of a fetched tweet. URL is the media_url of
// a photo, or the poster image of a video. Variants is only set for videos.
type Media struct {
	Kind     MediaKind
	URL      string
	ShortURL string
	Variants []VideoVariant
}

// RawTweet is a tweet as fetched from the remote, with entities already decoded.
type RawTweet struct {
	ID    int64
	Text  string
	Media []Media
}

type AttachmentType string

const (
	AttachmentPhoto AttachmentType = "photo"
	AttachmentVideo AttachmentType = "video"
)

// Attachment is resolved media ready for re-upload. Thumbnail and File hold
// the downloaded bytes; persisted attachments keep them in the blob store.
type Attachment struct {
	ID        uint           `json:"id,omitempty"`
	Type      AttachmentType `json:"type"`
	Ext       string         `json:"ext"`
	Thumbnail []byte         `json:"-"`
	File      []byte         `json:"-"`
}

// MimeType is the content type used when uploading the attachment.
func (a Attachment) MimeType() string {
	switch {
	case a.Type == AttachmentVideo:
		return "video/mp4"
	case a.Ext == "png":
		return "image/png"
	case a.Ext == "gif":
		return "image/gif"
	case a.Ext == "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// Tweet is a matched tweet after transformation.
type Tweet struct {
	ID          int64        `json:"id"`
	AccountID   int64        `json:"account_id"`
	SubmittedAt time.Time    `json:"submitted_at"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
}

// Stats is the liveness view of the worker.
type Stats struct {
	LastUpdate *time.Time `json:"last_update,omitempty"`
	Accounts   int64      `json:"accounts"`
}
