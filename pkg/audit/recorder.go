package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// writeTimeout bounds a single storage write so a wedged database cannot
// back the worker up forever.
const writeTimeout = 5 * time.Second

// Recorder buffers decisions and writes them to storage asynchronously.
// Recording never blocks request handling: when the buffer is full the
// decision is dropped and counted. A nil *Recorder is a no-op, so the
// pipeline does not guard for auditing being disabled.
type Recorder struct {
	storage *Storage
	ch      chan *Decision
	done    chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger

	mu      sync.Mutex
	dropped int64
}

// NewRecorder creates a recorder and starts its write worker.
func NewRecorder(storage *Storage, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	r := &Recorder{
		storage: storage,
		ch:      make(chan *Decision, bufferSize),
		done:    make(chan struct{}),
		logger:  slog.Default().With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.run()

	return r
}

// Record enqueues one decision. Missing IDs and timestamps are filled in.
func (r *Recorder) Record(d Decision) {
	if r == nil {
		return
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Time.IsZero() {
		d.Time = time.Now()
	}

	select {
	case r.ch <- &d:
	default:
		r.mu.Lock()
		r.dropped++
		n := r.dropped
		r.mu.Unlock()
		if n%100 == 1 {
			r.logger.Warn("audit buffer full, dropping decisions", "dropped_total", n)
		}
	}
}

// Dropped returns how many decisions have been dropped so far.
func (r *Recorder) Dropped() int64 {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close drains the buffer and stops the worker.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	close(r.done)
	r.wg.Wait()
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case d := <-r.ch:
			r.write(d)
		case <-r.done:
			// Drain whatever is left before exiting.
			for {
				select {
				case d := <-r.ch:
					r.write(d)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(d *Decision) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.storage.Insert(ctx, d); err != nil {
		r.logger.Error("failed to write audit decision", "error", err)
	}
}
