// internal/history/recorder.go
//
// Recorder archives finished rounds off the event goroutine. Listen only
// queues; a single writer goroutine runs the inserts. A full queue drops the
// round and logs it, so a slow disk never stalls a player request or timer.

package history

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeffreyp/wordgame/internal/game"
)

// DefaultQueueSize bounds the rounds waiting to be written.
const DefaultQueueSize = 64

// Recorder is a registry listener. Create with NewRecorder, stop with Close.
type Recorder struct {
	store   *Store
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	queue  chan game.StatusView
	done   chan struct{}
}

// NewRecorder starts the writer goroutine. timeout bounds each insert.
func NewRecorder(s *Store, timeout time.Duration, size int) *Recorder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	r := &Recorder{
		store:   s,
		timeout: timeout,
		queue:   make(chan game.StatusView, size),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Listen queues finished rounds and ignores every other event. It never blocks.
func (r *Recorder) Listen(ev game.Event) {
	if ev.Kind != game.EventRoundFinished {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- ev.State:
	default:
		log.Warn().Str("room", ev.Room).Int("round", ev.State.Round).Msg("results queue full, round not recorded")
	}
}

// Close stops accepting rounds and waits for the queued ones to be written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for v := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.store.Record(ctx, v); err != nil {
			log.Warn().Err(err).Str("room", v.Room).Int("round", v.Round).Msg("record round")
		}
		cancel()
	}
}
