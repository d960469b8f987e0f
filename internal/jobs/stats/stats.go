package stats

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tmdnlcl/relay-worker/internal/metrics"
)

// These are the types of statistics that we can add. The value is the JSON key that will be used for serialization.
type StatType string

const (
	Cycles          StatType = "cycles"
	CycleErrors     StatType = "cycle_errors"
	Throttled       StatType = "throttled"
	RateLimited     StatType = "rate_limited"
	AccountsRemoved StatType = "accounts_removed"
	TweetsFetched   StatType = "tweets_fetched"
	TweetsMatched   StatType = "tweets_matched"
	TweetsPublished StatType = "tweets_published"
	TweetsArchived  StatType = "tweets_archived"
	TweetErrors     StatType = "tweet_errors"
	MediaErrors     StatType = "media_errors"
	ArchivePosted   StatType = "archive_posted"
	ArchiveDeleted  StatType = "archive_deleted"
)

// AddStat is the struct used in the rest of the worker for sending statistics
type AddStat struct {
	Type     StatType
	WorkerID string
	Num      uint
}

// Stats is the structure we use to store the statistics
type Stats struct {
	BootTimeUnix      int64                        `json:"boot_time"`
	LastOperationUnix int64                        `json:"last_operation_time"`
	CurrentTimeUnix   int64                        `json:"current_time"`
	Stats             map[string]map[StatType]uint `json:"stats"`
	sync.Mutex
}

// StatsCollector is the object used to collect statistics
type StatsCollector struct {
	Stats *Stats
	Chan  chan AddStat
}

// StartCollector starts a goroutine that listens to a channel for AddStat messages and updates the stats accordingly.
// Every stat is mirrored to the Prometheus event counter.
func StartCollector(bufSize uint) *StatsCollector {
	logrus.Info("Starting stats collector")

	s := Stats{
		BootTimeUnix: time.Now().Unix(),
		Stats:        make(map[string]map[StatType]uint),
	}

	ch := make(chan AddStat, bufSize)

	go func(s *Stats, ch chan AddStat) {
		for stat := range ch {
			s.Lock()
			s.LastOperationUnix = time.Now().Unix()
			if _, ok := s.Stats[stat.WorkerID]; !ok {
				s.Stats[stat.WorkerID] = make(map[StatType]uint)
			}
			s.Stats[stat.WorkerID][stat.Type] += stat.Num
			s.Unlock()
			metrics.IncEvent(string(stat.Type), stat.Num)
			logrus.Debugf("Added %d to stat %s", stat.Num, stat.Type)
		}
	}(&s, ch)

	return &StatsCollector{Stats: &s, Chan: ch}
}

// Json returns the current statistics as a JSON byte array
func (s *StatsCollector) Json() ([]byte, error) {
	s.Stats.Lock()
	defer s.Stats.Unlock()
	s.Stats.CurrentTimeUnix = time.Now().Unix()
	return json.Marshal(s.Stats)
}

// Add is a convenience method to add a number to a statistic. It is safe on a nil collector.
func (s *StatsCollector) Add(workerID string, typ StatType, num uint) {
	if s == nil || num == 0 {
		return
	}
	s.Chan <- AddStat{WorkerID: workerID, Type: typ, Num: num}
}

// Total sums a statistic over all workers.
func (s *StatsCollector) Total(typ StatType) uint {
	s.Stats.Lock()
	defer s.Stats.Unlock()
	var n uint
	for _, byType := range s.Stats.Stats {
		n += byType[typ]
	}
	return n
}

// Totals sums every statistic over all workers.
func (s *StatsCollector) Totals() map[StatType]uint {
	s.Stats.Lock()
	defer s.Stats.Unlock()
	totals := make(map[StatType]uint)
	for _, byType := range s.Stats.Stats {
		for typ, n := range byType {
			totals[typ] += n
		}
	}
	return totals
}
