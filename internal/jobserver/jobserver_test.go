package jobserver_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tmdnlcl/relay-worker/internal/config"
	"github.com/tmdnlcl/relay-worker/internal/jobs/stats"
	. "github.com/tmdnlcl/relay-worker/internal/jobserver"
)

type fakeLister struct {
	sync.Mutex
	ids   []int64
	err   error
	calls int
}

func (l *fakeLister) ListAccountIDs(context.Context) ([]int64, error) {
	l.Lock()
	defer l.Unlock()
	l.calls++
	return l.ids, l.err
}

func (l *fakeLister) Calls() int {
	l.Lock()
	defer l.Unlock()
	return l.calls
}

// fakeProcessor records cycles and flags an account owned by two workers.
type fakeProcessor struct {
	sync.Mutex
	gate     chan struct{}
	inFlight map[int64]bool
	overlap  bool
	done     map[int64]int
	started  int
	panicOn  map[int64]bool
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{inFlight: map[int64]bool{}, done: map[int64]int{}}
}

func (p *fakeProcessor) ProcessAccount(_ context.Context, _ string, id int64) error {
	p.Lock()
	if p.inFlight[id] {
		p.overlap = true
	}
	p.inFlight[id] = true
	p.started++
	gate := p.gate
	p.Unlock()

	if gate != nil {
		<-gate
	} else {
		time.Sleep(time.Millisecond)
	}

	p.Lock()
	delete(p.inFlight, id)
	p.done[id]++
	panicking := p.panicOn[id]
	p.Unlock()
	if panicking {
		panic("nil map write")
	}
	return nil
}

func (p *fakeProcessor) Started() int {
	p.Lock()
	defer p.Unlock()
	return p.started
}

func (p *fakeProcessor) Done(id int64) int {
	p.Lock()
	defer p.Unlock()
	return p.done[id]
}

func workerConfig(workers int) config.WorkerConfig {
	return config.WorkerConfig{
		Workers:       workers,
		SweepInterval: 10 * time.Millisecond,
		PollTimeout:   5 * time.Millisecond,
	}
}

func runAsync(js *JobServer, ctx context.Context) chan error {
	done := make(chan error, 1)
	go func() { done <- js.Run(ctx) }()
	return done
}

var _ = Describe("Jobserver", func() {
	var (
		lister    *fakeLister
		processor *fakeProcessor
	)

	BeforeEach(func() {
		lister = &fakeLister{ids: []int64{1, 2, 3, 4, 5, 6, 7}}
		processor = newFakeProcessor()
	})

	It("processes every account on each sweep without overlap", func() {
		js := NewJobServer(workerConfig(3), lister, processor, nil)
		done := runAsync(js, context.Background())

		Eventually(func() bool {
			for _, id := range lister.ids {
				if processor.Done(id) < 3 {
					return false
				}
			}
			return true
		}, "5s").Should(BeTrue())

		js.Shutdown()
		Eventually(done, "2s").Should(Receive(BeNil()))
		Expect(processor.overlap).To(BeFalse())
		Expect(js.LastSweep()).NotTo(BeZero())
	})

	It("survives a panicking cycle and counts it", func() {
		processor.panicOn = map[int64]bool{3: true}
		collector := stats.StartCollector(16)
		js := NewJobServer(workerConfig(1), lister, processor, collector)
		done := runAsync(js, context.Background())

		Eventually(func() bool {
			for _, id := range lister.ids {
				if processor.Done(id) < 2 {
					return false
				}
			}
			return true
		}, "5s").Should(BeTrue())
		Eventually(func() uint { return collector.Total(stats.CycleErrors) }, "2s").Should(BeNumerically(">=", 2))

		js.Shutdown()
		Eventually(done, "2s").Should(Receive(BeNil()))
		Expect(processor.overlap).To(BeFalse())
	})

	It("blocks the producer while every worker is busy", func() {
		processor.gate = make(chan struct{})
		js := NewJobServer(workerConfig(1), lister, processor, nil)
		done := runAsync(js, context.Background())

		Eventually(processor.Started, "2s").Should(Equal(1))
		Consistently(processor.Started, "100ms").Should(Equal(1))

		js.Shutdown()
		close(processor.gate)
		Eventually(done, "2s").Should(Receive(BeNil()))
		Expect(processor.Started()).To(Equal(1))
	})

	It("lets in-flight cycles finish after shutdown and dequeues nothing new", func() {
		processor.gate = make(chan struct{})
		js := NewJobServer(workerConfig(2), lister, processor, nil)
		done := runAsync(js, context.Background())

		Eventually(processor.Started, "2s").Should(Equal(2))
		js.Shutdown()
		Expect(js.Stopped()).To(BeTrue())
		Consistently(done, "100ms").ShouldNot(Receive())

		close(processor.gate)
		Eventually(done, "2s").Should(Receive(BeNil()))
		Expect(processor.Started()).To(Equal(2))
	})

	It("stops when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		js := NewJobServer(workerConfig(2), lister, processor, nil)
		done := runAsync(js, ctx)

		Eventually(func() int { return processor.Done(1) }, "2s").Should(BeNumerically(">=", 1))
		cancel()
		Eventually(done, "2s").Should(Receive(BeNil()))
		Expect(js.Stopped()).To(BeTrue())
	})

	It("keeps sweeping after a listing error", func() {
		lister.err = errors.New("database is locked")
		js := NewJobServer(workerConfig(1), lister, processor, nil)
		done := runAsync(js, context.Background())

		Eventually(lister.Calls, "2s").Should(BeNumerically(">=", 2))
		Expect(processor.Started()).To(BeZero())

		js.Shutdown()
		Eventually(done, "2s").Should(Receive(BeNil()))
	})

	It("refuses to run twice", func() {
		js := NewJobServer(workerConfig(1), lister, processor, nil)
		done := runAsync(js, context.Background())
		Eventually(processor.Started, "2s").Should(BeNumerically(">=", 1))

		Expect(js.Run(context.Background())).To(MatchError(ErrAlreadyRunning))
		js.Shutdown()
		Eventually(done, "2s").Should(Receive(BeNil()))
	})

	It("rejects sweeps after shutdown", func() {
		js := NewJobServer(workerConfig(1), lister, processor, nil)
		js.Shutdown()
		Expect(js.Sweep(context.Background())).To(MatchError(ErrQueueClosed))
	})
})
