package jobserver

import "errors"

var (
	// ErrQueueClosed is returned when enqueueing after a shutdown
	ErrQueueClosed = errors.New("queue is closed")

	// ErrAlreadyRunning is returned when Run is called twice
	ErrAlreadyRunning = errors.New("job server already running")
)
