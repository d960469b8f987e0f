package stats_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tmdnlcl/relay-worker/internal/jobs/stats"
)

var _ = Describe("StatsCollector", func() {
	It("sums stats per worker", func() {
		s := stats.StartCollector(8)
		s.Add("w1", stats.TweetsFetched, 2)
		s.Add("w2", stats.TweetsFetched, 3)
		s.Add("w1", stats.TweetsPublished, 1)

		Eventually(func() uint { return s.Total(stats.TweetsFetched) }).Should(Equal(uint(5)))
		Eventually(func() uint { return s.Total(stats.TweetsPublished) }).Should(Equal(uint(1)))

		data, err := s.Json()
		Expect(err).NotTo(HaveOccurred())
		var decoded struct {
			Stats map[string]map[string]uint `json:"stats"`
		}
		Expect(json.Unmarshal(data, &decoded)).To(Succeed())
		Expect(decoded.Stats["w1"]["tweets_fetched"]).To(Equal(uint(2)))

		Expect(s.Totals()).To(HaveKeyWithValue(stats.TweetsFetched, uint(5)))
	})

	It("ignores a nil collector", func() {
		var s *stats.StatsCollector
		Expect(func() { s.Add("w", stats.Cycles, 1) }).NotTo(Panic())
	})
})
