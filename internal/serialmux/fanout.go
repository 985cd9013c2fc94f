package serialmux

import (
	"sync"

	"github.com/google/uuid"
)

// fanout is the subscriber registry shared by the multiplexers.
type fanout struct {
	mu      sync.Mutex
	subs    map[string]chan string
	buffer  int
	closing bool
	dropped uint64
}

func newFanout(buffer int) *fanout {
	return &fanout{subs: make(map[string]chan string), buffer: buffer}
}

func (f *fanout) subscribe() (string, chan string) {
	id := uuid.NewString()
	ch := make(chan string, f.buffer)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closing {
		close(ch)
		return id, ch
	}
	f.subs[id] = ch
	return id, ch
}

func (f *fanout) unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.subs[id]; ok {
		close(ch)
		delete(f.subs, id)
	}
}

// broadcast delivers line to every subscriber with room for it and reports
// false once closed.
func (f *fanout) broadcast(line string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closing {
		return false
	}
	for _, ch := range f.subs {
		select {
		case ch <- line:
		default:
			f.dropped++
		}
	}
	return true
}

// close closes every subscription. It reports false if already closed.
func (f *fanout) close() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closing {
		return false
	}
	f.closing = true
	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
	return true
}

func (f *fanout) droppedCount() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}
