package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tmdnlcl/relay-worker/api/types"
	"github.com/tmdnlcl/relay-worker/internal/classify"
	"github.com/tmdnlcl/relay-worker/internal/config"
	"github.com/tmdnlcl/relay-worker/internal/jobs"
	"github.com/tmdnlcl/relay-worker/internal/jobs/stats"
	"github.com/tmdnlcl/relay-worker/internal/jobs/twitter"
	"github.com/tmdnlcl/relay-worker/internal/media"
	"github.com/tmdnlcl/relay-worker/internal/store"
)

var patterns = config.PatternConfig{HashTag: "#Tag", InstantOpen: ">>", InstantClose: "<<", ArchivePrefix: "//"}

func openStore() *store.Store {
	dir := GinkgoT().TempDir()
	s, err := store.Open(config.StoreConfig{DatabasePath: filepath.Join(dir, "test.db"), BlobDir: filepath.Join(dir, "media")})
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(s.Close)
	return s
}

func cursorAt(s *store.Store, id, cursor int64) {
	_, err := s.UpdatePoll(context.Background(), id, &cursor, types.RateLimit{})
	Expect(err).NotTo(HaveOccurred())
}

var _ = Describe("Relay", func() {
	var (
		ctx       context.Context
		db        *store.Store
		client    *fakeClient
		auth      *fakeAuth
		collector *stats.StatsCollector
		liveness  *store.StatsHandle
		fetcher   fakeFetcher
		opts      jobs.RelayOptions
	)

	newRelay := func() *jobs.Relay {
		t := jobs.NewTransformer(classify.New(patterns), media.NewResolver(fetcher))
		return jobs.NewRelay(db, db, liveness, auth, t, collector, opts)
	}

	BeforeEach(func() {
		ctx = context.Background()
		db = openStore()
		client = &fakeClient{screenName: "mario"}
		auth = &fakeAuth{client: client}
		collector = stats.StartCollector(64)
		fetcher = fakeFetcher{}
		opts = jobs.RelayOptions{APIMode: config.APIModeTimeline, ArchiveDeleteRemote: true}

		var err error
		liveness, err = db.OpenStats(ctx)
		Expect(err).NotTo(HaveOccurred())
		_, err = db.RegisterAccount(ctx, 7, "tok", "sec")
		Expect(err).NotTo(HaveOccurred())
	})

	It("skips a throttled account without calling the remote", func() {
		remaining := 0
		reset := time.Now().Add(time.Hour)
		_, err := db.UpdatePoll(ctx, 7, nil, types.RateLimit{Remaining: &remaining, ResetAt: &reset})
		Expect(err).NotTo(HaveOccurred())

		err = newRelay().ProcessAccount(ctx, "w0", 7)
		var throttled *jobs.ThrottledError
		Expect(errors.As(err, &throttled)).To(BeTrue())
		Expect(throttled.Wait).To(BeNumerically("~", time.Hour, time.Minute))
		Expect(throttled.Until).To(BeTemporally("~", reset, time.Second))
		Expect(client.fetches).To(BeZero())
		Expect(auth.calls).To(BeZero())

		last, err := liveness.LastUpdate(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(last).NotTo(BeNil())
	})

	It("polls again once the window has reset", func() {
		remaining := 0
		reset := time.Now().Add(-time.Second)
		_, err := db.UpdatePoll(ctx, 7, nil, types.RateLimit{Remaining: &remaining, ResetAt: &reset})
		Expect(err).NotTo(HaveOccurred())

		Expect(newRelay().ProcessAccount(ctx, "w0", 7)).To(Succeed())
		Expect(client.fetches).To(Equal(1))
	})

	It("archives only matching tweets and moves the cursor to the highest id", func() {
		cursorAt(db, 7, 100)
		client.tweets = []types.RawTweet{
			{ID: 101, Text: "//first"},
			{ID: 103, Text: "//third"},
			{ID: 102, Text: "not for the archive"},
		}
		reset := time.Now().Add(15 * time.Minute).Truncate(time.Second)
		client.meta = &types.RateLimitMeta{Remaining: 899, ResetAt: reset}

		Expect(newRelay().ProcessAccount(ctx, "w0", 7)).To(Succeed())
		Expect(client.sinceIDs).To(Equal([]int64{100}))

		account, err := db.GetAccount(ctx, 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(account.Cursor()).To(Equal(int64(103)))
		Expect(*account.RateLimit.Remaining).To(Equal(899))
		Expect(account.RateLimit.ResetAt.Equal(reset)).To(BeTrue())

		archived, err := db.ListTweets(ctx, 7)
		Expect(err).NotTo(HaveOccurred())
		contents := []string{}
		for _, t := range archived {
			contents = append(contents, t.Content)
		}
		Expect(contents).To(ConsistOf("first", "third"))
		Expect(client.deleted).To(ConsistOf(int64(101), int64(103)))
		Expect(client.posts).To(BeEmpty())

		Eventually(func() uint { return collector.Total(stats.TweetsArchived) }).Should(Equal(uint(2)))
	})

	It("keeps the remote original when archive deletion is off", func() {
		opts.ArchiveDeleteRemote = false
		client.tweets = []types.RawTweet{{ID: 5, Text: "//keep"}}
		Expect(newRelay().ProcessAccount(ctx, "w0", 7)).To(Succeed())
		Expect(client.deleted).To(BeEmpty())
	})

	It("republishes instant tweets with converted text and media", func() {
		_, err := db.SetMode(ctx, 7, types.ModeInstant)
		Expect(err).NotTo(HaveOccurred())
		fetcher["http://p/a.jpg:orig"] = []byte("photo")
		fetcher["http://p/a.jpg:thumb"] = []byte("thumb")
		client.tweets = []types.RawTweet{{
			ID:    200,
			Text:  "#Tag >>dkssud<< https://t.co/x",
			Media: []types.Media{{Kind: types.MediaPhoto, URL: "http://p/a.jpg", ShortURL: "https://t.co/x"}},
		}}

		Expect(newRelay().ProcessAccount(ctx, "w0", 7)).To(Succeed())
		Expect(client.uploads).To(Equal([]string{"media:image/jpeg:photo"}))
		Expect(client.posts).To(HaveLen(1))
		Expect(client.posts[0].text).To(Equal("#Tag 안녕"))
		Expect(client.posts[0].mediaIDs).To(Equal([]int64{1}))
		Expect(client.deleted).To(Equal([]int64{200}))

		archived, err := db.ListTweets(ctx, 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(archived).To(BeEmpty())
	})

	It("drops a tweet whose media fails but still advances the cursor", func() {
		client.tweets = []types.RawTweet{
			{ID: 301, Text: "//broken", Media: []types.Media{{Kind: types.MediaPhoto, URL: "http://p/missing.jpg"}}},
			{ID: 300, Text: "//fine"},
		}

		Expect(newRelay().ProcessAccount(ctx, "w0", 7)).To(Succeed())

		account, err := db.GetAccount(ctx, 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(account.Cursor()).To(Equal(int64(301)))
		archived, err := db.ListTweets(ctx, 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(archived).To(HaveLen(1))
		Expect(archived[0].ID).To(Equal(int64(300)))
		Eventually(func() uint { return collector.Total(stats.MediaErrors) }).Should(Equal(uint(1)))
	})

	It("drops a video without a progressive variant", func() {
		client.tweets = []types.RawTweet{{ID: 400, Text: "//clip", Media: []types.Media{{Kind: types.MediaVideo, URL: "http://p/poster.jpg"}}}}
		Expect(newRelay().ProcessAccount(ctx, "w0", 7)).To(Succeed())
		archived, err := db.ListTweets(ctx, 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(archived).To(BeEmpty())
	})

	It("treats a rate-limit rejection as an empty batch", func() {
		cursorAt(db, 7, 50)
		client.tweets = []types.RawTweet{{ID: 60, Text: "//x"}}
		client.fetchErr = fmt.Errorf("timeline: %w", twitter.ErrRateLimited)
		reset := time.Now().Add(time.Hour).Truncate(time.Second)
		client.meta = &types.RateLimitMeta{Remaining: 0, ResetAt: reset}

		Expect(newRelay().ProcessAccount(ctx, "w0", 7)).To(Succeed())

		account, err := db.GetAccount(ctx, 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(account.Cursor()).To(Equal(int64(50)))
		Expect(*account.RateLimit.Remaining).To(BeZero())

		client.fetchErr = nil
		err = newRelay().ProcessAccount(ctx, "w0", 7)
		var throttled *jobs.ThrottledError
		Expect(errors.As(err, &throttled)).To(BeTrue())
		Expect(client.fetches).To(Equal(1))
	})

	It("removes an account whose credentials are rejected", func() {
		client.fetchErr = fmt.Errorf("timeline: %w", twitter.ErrAuthInvalid)

		err := newRelay().ProcessAccount(ctx, "w0", 7)
		var fatal *jobs.FatalAccountError
		Expect(errors.As(err, &fatal)).To(BeTrue())
		Expect(fatal.AccountID).To(Equal(int64(7)))

		_, err = db.GetAccount(ctx, 7)
		Expect(err).To(MatchError(store.ErrAccountNotFound))
	})

	It("removes the account when publishing is rejected", func() {
		_, err := db.SetMode(ctx, 7, types.ModeInstant)
		Expect(err).NotTo(HaveOccurred())
		client.tweets = []types.RawTweet{{ID: 10, Text: "#Tag >>gksrmf<<"}}
		client.postErr = twitter.ErrAuthInvalid

		err = newRelay().ProcessAccount(ctx, "w0", 7)
		Expect(err).To(MatchError(twitter.ErrAuthInvalid))
		_, err = db.GetAccount(ctx, 7)
		Expect(err).To(MatchError(store.ErrAccountNotFound))
	})

	It("keeps the cursor when the fetch fails in transport", func() {
		cursorAt(db, 7, 20)
		client.fetchErr = errors.New("connection refused")
		Expect(newRelay().ProcessAccount(ctx, "w0", 7)).To(MatchError(ContainSubstring("connection refused")))
		account, err := db.GetAccount(ctx, 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(account.Cursor()).To(Equal(int64(20)))
	})

	It("searches by screen name in search mode", func() {
		opts.APIMode = config.APIModeSearch
		opts.SearchKeyword = "#Tag"
		Expect(newRelay().ProcessAccount(ctx, "w0", 7)).To(Succeed())
		Expect(client.queries).To(Equal([]string{"from:mario #Tag"}))
	})

	It("ignores accounts that no longer exist", func() {
		Expect(newRelay().ProcessAccount(ctx, "w0", 99)).To(Succeed())
		Expect(auth.calls).To(BeZero())
	})
})
