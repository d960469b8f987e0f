package jobserver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tmdnlcl/relay-worker/internal/config"
	"github.com/tmdnlcl/relay-worker/internal/jobs/stats"
	"github.com/tmdnlcl/relay-worker/internal/metrics"
)

// Processor runs the cycle of one account.
type Processor interface {
	ProcessAccount(ctx context.Context, workerID string, accountID int64) error
}

// AccountLister enumerates the accounts to poll.
type AccountLister interface {
	ListAccountIDs(ctx context.Context) ([]int64, error)
}

// JobServer is a fixed pool of workers fed by a single producer. Each sweep
// enqueues every account once and waits for all of them to finish before the
// next sweep starts, so an account is never owned by two workers.
type JobServer struct {
	sync.Mutex

	queue     chan int64
	pending   sync.WaitGroup
	workerWG  sync.WaitGroup
	stop      chan struct{}
	stopOnce  sync.Once
	stopped   atomic.Bool
	running   bool
	lastSweep time.Time

	lister    AccountLister
	processor Processor
	collector *stats.StatsCollector
	cfg       config.WorkerConfig
}

// NewJobServer builds a stopped job server. collector may be nil.
func NewJobServer(cfg config.WorkerConfig, lister AccountLister, processor Processor, collector *stats.StatsCollector) *JobServer {
	if cfg.Workers <= 0 {
		logrus.Infof("Invalid worker count (%d), defaulting to 1 worker.", cfg.Workers)
		cfg.Workers = 1
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	logrus.Infof("Setting worker count to %d.", cfg.Workers)

	return &JobServer{
		queue:     make(chan int64, cfg.Workers),
		stop:      make(chan struct{}),
		lister:    lister,
		processor: processor,
		collector: collector,
		cfg:       cfg,
	}
}

// Run starts the workers and the producer and blocks until ctx is done or
// Shutdown is called, and every in-flight cycle has returned.
func (js *JobServer) Run(ctx context.Context) error {
	js.Lock()
	if js.running {
		js.Unlock()
		return ErrAlreadyRunning
	}
	js.running = true
	js.Unlock()

	// Cycles outlive the cancellation of ctx; they stop at the next poll.
	cycleCtx := context.WithoutCancel(ctx)
	for i := 0; i < js.cfg.Workers; i++ {
		js.workerWG.Add(1)
		go js.worker(cycleCtx, workerName(i))
	}

	go func() {
		select {
		case <-ctx.Done():
			js.Shutdown()
		case <-js.stop:
		}
	}()

	js.produce(cycleCtx)
	js.workerWG.Wait()
	js.drain()
	logrus.Info("Job server stopped")
	return nil
}

// Shutdown sets the stop flag. Workers finish their current cycle and exit.
func (js *JobServer) Shutdown() {
	js.stopOnce.Do(func() {
		logrus.Info("Shutting down job server...")
		js.stopped.Store(true)
		close(js.stop)
	})
}

// Stopped reports whether Shutdown was called.
func (js *JobServer) Stopped() bool {
	return js.stopped.Load()
}

// LastSweep returns when the last complete sweep finished.
func (js *JobServer) LastSweep() time.Time {
	js.Lock()
	defer js.Unlock()
	return js.lastSweep
}

func (js *JobServer) produce(ctx context.Context) {
	for !js.Stopped() {
		if err := js.Sweep(ctx); err != nil && !errors.Is(err, ErrQueueClosed) {
			logrus.WithError(err).Error("Sweep failed")
		}
		if !js.sleep(js.cfg.SweepInterval) {
			return
		}
	}
}

// Sweep enqueues every account once and returns when all of them were
// processed. It returns ErrQueueClosed if a shutdown interrupts it.
func (js *JobServer) Sweep(ctx context.Context) error {
	start := time.Now()
	log := logrus.WithField("sweep", uuid.New().String())

	ids, err := js.lister.ListAccountIDs(ctx)
	if err != nil {
		return err
	}
	metrics.Accounts.Set(float64(len(ids)))
	log.Debugf("Enqueueing %d accounts", len(ids))

	for _, id := range ids {
		if err := js.enqueue(id); err != nil {
			js.join()
			return err
		}
	}
	if !js.join() {
		return ErrQueueClosed
	}

	metrics.ObserveSweep(start)
	js.Lock()
	js.lastSweep = time.Now()
	js.Unlock()
	log.Debugf("Sweep done in %v", time.Since(start))
	return nil
}

// enqueue blocks while every worker is busy.
func (js *JobServer) enqueue(id int64) error {
	if js.Stopped() {
		return ErrQueueClosed
	}
	js.pending.Add(1)
	select {
	case js.queue <- id:
		return nil
	case <-js.stop:
		js.pending.Done()
		return ErrQueueClosed
	}
}

// join waits for the items of the current sweep. It gives up on shutdown,
// leaving the undelivered items to drain.
func (js *JobServer) join() bool {
	done := make(chan struct{})
	go func() {
		js.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-js.stop:
		return false
	}
}

// drain releases the items no worker picked up before the shutdown.
func (js *JobServer) drain() {
	for {
		select {
		case <-js.queue:
			js.pending.Done()
		default:
			return
		}
	}
}

// sleep waits for d and returns false if a shutdown happened meanwhile.
func (js *JobServer) sleep(d time.Duration) bool {
	if d <= 0 {
		return !js.Stopped()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-js.stop:
		return false
	}
}
