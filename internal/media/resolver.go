// Package media turns the media descriptors of a fetched tweet into
// downloaded attachments.
package media

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/tmdnlcl/relay-worker/api/types"
)

const progressiveMP4 = "video/mp4"

// PhotoURL returns the original-size URL of a photo and its file extension.
func PhotoURL(m types.Media) (string, string) {
	return m.URL + ":orig", Extension(m.URL)
}

// Extension returns the extension of the last path segment of rawURL.
func Extension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	base := path.Base(p)
	// Drop a size suffix such as ":orig".
	if i := strings.IndexByte(base, ':'); i >= 0 {
		base = base[:i]
	}
	return strings.TrimPrefix(path.Ext(base), ".")
}

// SelectVariant picks the video/mp4 variant with the highest bitrate.
func SelectVariant(variants []types.VideoVariant) (types.VideoVariant, error) {
	mp4 := make([]types.VideoVariant, 0, len(variants))
	for _, v := range variants {
		if v.ContentType == progressiveMP4 {
			mp4 = append(mp4, v)
		}
	}
	if len(mp4) == 0 {
		return types.VideoVariant{}, ErrNoProgressiveVideo
	}
	// Stable so the first listed wins a tie.
	slices.SortStableFunc(mp4, func(a, b types.VideoVariant) int {
		return b.Bitrate - a.Bitrate
	})
	return mp4[0], nil
}

// StripShortURLs removes the short link of every media item from text.
func StripShortURLs(text string, media []types.Media) string {
	for _, m := range media {
		if m.ShortURL != "" {
			text = strings.ReplaceAll(text, m.ShortURL, "")
		}
	}
	return strings.TrimSpace(text)
}

// Resolver downloads the media of a tweet.
type Resolver struct {
	fetcher Fetcher
}

func NewResolver(f Fetcher) *Resolver {
	return &Resolver{fetcher: f}
}

// Resolve downloads every media item of tweet, in order. Photos get the
// ":thumb" rendition as thumbnail, videos their poster image.
func (r *Resolver) Resolve(ctx context.Context, tweet types.RawTweet) ([]types.Attachment, error) {
	attachments := make([]types.Attachment, 0, len(tweet.Media))
	for _, m := range tweet.Media {
		var (
			att      types.Attachment
			fileURL  string
			thumbURL string
		)
		switch m.Kind {
		case types.MediaPhoto:
			fileURL, att.Ext = PhotoURL(m)
			thumbURL = m.URL + ":thumb"
			att.Type = types.AttachmentPhoto
		case types.MediaVideo:
			v, err := SelectVariant(m.Variants)
			if err != nil {
				return nil, fmt.Errorf("tweet %d: %w", tweet.ID, err)
			}
			fileURL = v.URL
			thumbURL = m.URL
			att.Type = types.AttachmentVideo
			att.Ext = "mp4"
		default:
			logrus.Debugf("Skipping media of kind %q in tweet %d", m.Kind, tweet.ID)
			continue
		}

		file, err := r.fetcher.Fetch(ctx, fileURL)
		if err != nil {
			return nil, &MediaFetchError{TweetID: tweet.ID, URL: fileURL, Err: err}
		}
		thumb, err := r.fetcher.Fetch(ctx, thumbURL)
		if err != nil {
			return nil, &MediaFetchError{TweetID: tweet.ID, URL: thumbURL, Err: err}
		}
		att.File = file
		att.Thumbnail = thumb
		attachments = append(attachments, att)
	}
	return attachments, nil
}
