package jobserver

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tmdnlcl/relay-worker/internal/jobs"
	"github.com/tmdnlcl/relay-worker/internal/jobs/stats"
	"github.com/tmdnlcl/relay-worker/internal/metrics"
)

func workerName(i int) string {
	return fmt.Sprintf("worker-%d", i)
}

func (js *JobServer) worker(ctx context.Context, name string) {
	defer js.workerWG.Done()
	log := logrus.WithField("worker", name)
	log.Debug("Worker started")

	for !js.Stopped() {
		select {
		case id := <-js.queue:
			if js.Stopped() {
				js.pending.Done()
				continue
			}
			js.doWork(ctx, name, id)
			js.pending.Done()
			js.sleep(js.cfg.Delay)
		case <-time.After(js.cfg.PollTimeout):
		}
	}
	log.Debug("Worker stopped")
}

func (js *JobServer) doWork(ctx context.Context, name string, id int64) {
	metrics.BusyWorkers.Inc()
	defer metrics.BusyWorkers.Dec()

	log := logrus.WithFields(logrus.Fields{"worker": name, "account_id": id})
	// A panicking cycle costs its account this sweep, not the worker.
	defer func() {
		if r := recover(); r != nil {
			js.collector.Add(name, stats.CycleErrors, 1)
			log.Errorf("Cycle panicked: %v\n%s", r, debug.Stack())
		}
	}()

	err := js.processor.ProcessAccount(ctx, name, id)
	if err == nil {
		return
	}

	var (
		throttled *jobs.ThrottledError
		fatal     *jobs.FatalAccountError
	)
	switch {
	case errors.As(err, &throttled):
		log.Debugf("Throttled for %v until %s", throttled.Wait.Round(time.Second), throttled.Until.Format(time.RFC3339))
	case errors.As(err, &fatal):
		log.WithError(err).Warn("Account removed")
	default:
		log.WithError(err).Error("Cycle failed")
	}
}
