package media_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tmdnlcl/relay-worker/api/types"
	"github.com/tmdnlcl/relay-worker/internal/media"
)

var _ = Describe("SelectVariant", func() {
	It("picks the highest bitrate mp4", func() {
		v, err := media.SelectVariant([]types.VideoVariant{
			{ContentType: "application/x-mpegURL", URL: "m3u8"},
			{ContentType: "video/mp4", Bitrate: 832000, URL: "a"},
			{ContentType: "video/mp4", Bitrate: 2176000, URL: "b"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(v.URL).To(Equal("b"))
	})

	It("fails when only streaming variants exist", func() {
		_, err := media.SelectVariant([]types.VideoVariant{{ContentType: "application/x-mpegURL", URL: "m3u8"}})
		Expect(err).To(MatchError(media.ErrNoProgressiveVideo))
	})
})

var _ = Describe("PhotoURL", func() {
	It("requests the original size and keeps the extension", func() {
		u, ext := media.PhotoURL(types.Media{Kind: types.MediaPhoto, URL: "http://pbs.twimg.com/media/abc.png"})
		Expect(u).To(Equal("http://pbs.twimg.com/media/abc.png:orig"))
		Expect(ext).To(Equal("png"))
	})

	It("ignores size suffixes when reading the extension", func() {
		Expect(media.Extension("https://pbs.twimg.com/media/abc.jpg:large")).To(Equal("jpg"))
	})
})

var _ = Describe("StripShortURLs", func() {
	It("removes media links and trims", func() {
		text := media.StripShortURLs("look at this https://t.co/xyz", []types.Media{{ShortURL: "https://t.co/xyz"}})
		Expect(text).To(Equal("look at this"))
	})
})

type fakeFetcher map[string][]byte

func (f fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	if b, ok := f[url]; ok {
		return b, nil
	}
	return nil, errors.New("not found")
}

var _ = Describe("Resolver", func() {
	It("downloads photos and videos in order", func() {
		r := media.NewResolver(fakeFetcher{
			"http://p/1.jpg:orig":  []byte("photo"),
			"http://p/1.jpg:thumb": []byte("thumb"),
			"http://v/hi.mp4":      []byte("video"),
			"http://p/poster.jpg":  []byte("poster"),
		})
		atts, err := r.Resolve(context.Background(), types.RawTweet{ID: 1, Media: []types.Media{
			{Kind: types.MediaPhoto, URL: "http://p/1.jpg"},
			{Kind: types.MediaVideo, URL: "http://p/poster.jpg", Variants: []types.VideoVariant{
				{ContentType: "video/mp4", Bitrate: 1, URL: "http://v/lo.mp4"},
				{ContentType: "video/mp4", Bitrate: 2, URL: "http://v/hi.mp4"},
			}},
		}})
		Expect(err).NotTo(HaveOccurred())
		Expect(atts).To(HaveLen(2))
		Expect(atts[0].Type).To(Equal(types.AttachmentPhoto))
		Expect(atts[0].Ext).To(Equal("jpg"))
		Expect(atts[0].File).To(Equal([]byte("photo")))
		Expect(atts[0].Thumbnail).To(Equal([]byte("thumb")))
		Expect(atts[1].Type).To(Equal(types.AttachmentVideo))
		Expect(atts[1].File).To(Equal([]byte("video")))
		Expect(atts[1].Thumbnail).To(Equal([]byte("poster")))
	})

	It("wraps download failures", func() {
		r := media.NewResolver(fakeFetcher{})
		_, err := r.Resolve(context.Background(), types.RawTweet{ID: 9, Media: []types.Media{{Kind: types.MediaPhoto, URL: "http://p/x.jpg"}}})
		var fetchErr *media.MediaFetchError
		Expect(errors.As(err, &fetchErr)).To(BeTrue())
		Expect(fetchErr.TweetID).To(Equal(int64(9)))
	})

	It("reports videos without mp4", func() {
		r := media.NewResolver(fakeFetcher{})
		_, err := r.Resolve(context.Background(), types.RawTweet{ID: 9, Media: []types.Media{{Kind: types.MediaVideo}}})
		Expect(errors.Is(err, media.ErrNoProgressiveVideo)).To(BeTrue())
	})
})

var _ = Describe("HTTPFetcher", func() {
	It("retries server errors", func() {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte("ok"))
		}))
		DeferCleanup(srv.Close)

		body, err := media.NewHTTPFetcher(srv.Client(), 5).Fetch(context.Background(), srv.URL)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(Equal("ok"))
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(3)))
	})

	It("does not retry client errors", func() {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusNotFound)
		}))
		DeferCleanup(srv.Close)

		_, err := media.NewHTTPFetcher(srv.Client(), 5).Fetch(context.Background(), srv.URL)
		var statusErr *media.StatusError
		Expect(errors.As(err, &statusErr)).To(BeTrue())
		Expect(statusErr.StatusCode).To(Equal(http.StatusNotFound))
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(1)))
	})
})
