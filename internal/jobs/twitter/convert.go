package twitter

import (
	"html"

	gotwitter "github.com/dghubble/go-twitter/twitter"

	"github.com/tmdnlcl/relay-worker/api/types"
)

func toRawTweets(tweets []gotwitter.Tweet) []types.RawTweet {
	return filterMap(tweets, func(t gotwitter.Tweet) (types.RawTweet, bool) {
		return toRawTweet(t), t.ID != 0
	})
}

// toRawTweet decodes the entity escaped body of t and flattens its media.
func toRawTweet(t gotwitter.Tweet) types.RawTweet {
	text := t.FullText
	if text == "" {
		text = t.Text
	}
	raw := types.RawTweet{ID: t.ID, Text: html.UnescapeString(text)}

	var entities []gotwitter.MediaEntity
	switch {
	case t.ExtendedEntities != nil && len(t.ExtendedEntities.Media) > 0:
		entities = t.ExtendedEntities.Media
	case t.Entities != nil:
		entities = t.Entities.Media
	}
	raw.Media = filterMap(entities, toMedia)
	return raw
}

func toMedia(m gotwitter.MediaEntity) (types.Media, bool) {
	url := m.MediaURLHttps
	if url == "" {
		url = m.MediaURL
	}
	switch m.Type {
	case "photo":
		return types.Media{Kind: types.MediaPhoto, URL: url, ShortURL: m.URL}, true
	case "video", "animated_gif":
		variants := make([]types.VideoVariant, 0, len(m.VideoInfo.Variants))
		for _, v := range m.VideoInfo.Variants {
			variants = append(variants, types.VideoVariant{ContentType: v.ContentType, Bitrate: v.Bitrate, URL: v.URL})
		}
		return types.Media{Kind: types.MediaVideo, URL: url, ShortURL: m.URL, Variants: variants}, true
	default:
		return types.Media{}, false
	}
}

func filterMap[T any, R any](slice []T, f func(T) (R, bool)) []R {
	result := make([]R, 0, len(slice))
	for _, v := range slice {
		if r, ok := f(v); ok {
			result = append(result, r)
		}
	}
	return result
}
