// Package bus provides in-process publish/subscribe topics that stand in for
// the vehicle message transport. Each topic fans values out to subscriber
// channels and latches the most recent value for late joiners and the API.
package bus

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"tailscale.com/tsweb"
)

// DefaultQueueSize is the per-subscriber buffer. Slow subscribers drop values
// rather than block the publisher.
const DefaultQueueSize = 16

// Topic is a named fan-out channel carrying values of type T.
type Topic[T any] struct {
	name         string
	queueSize    int
	subscribers  map[string]chan T
	subscriberMu sync.Mutex
	latest       T
	hasLatest    bool
	closing      bool
	dropped      uint64
}

// NewTopic creates a topic with the given name.
func NewTopic[T any](name string) *Topic[T] {
	return &Topic[T]{
		name:        name,
		queueSize:   DefaultQueueSize,
		subscribers: make(map[string]chan T),
	}
}

// Name returns the topic name.
func (t *Topic[T]) Name() string { return t.name }

// Subscribe creates a new channel for receiving values. The returned ID is
// used to unsubscribe. Subscribing to a closed topic returns a closed channel.
func (t *Topic[T]) Subscribe() (string, <-chan T) {
	id := uuid.NewString()
	ch := make(chan T, t.queueSize)

	t.subscriberMu.Lock()
	defer t.subscriberMu.Unlock()
	if t.closing {
		close(ch)
		return id, ch
	}
	t.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (t *Topic[T]) Unsubscribe(id string) {
	t.subscriberMu.Lock()
	defer t.subscriberMu.Unlock()
	if ch, ok := t.subscribers[id]; ok {
		close(ch)
		delete(t.subscribers, id)
	}
}

// Publish latches v and delivers it to every subscriber whose queue has room.
func (t *Topic[T]) Publish(v T) {
	t.subscriberMu.Lock()
	defer t.subscriberMu.Unlock()
	if t.closing {
		return
	}
	t.latest = v
	t.hasLatest = true
	for _, ch := range t.subscribers {
		select {
		case ch <- v:
		default:
			// if the channel is full skip so as not to block the publisher
			t.dropped++
		}
	}
}

// Latest returns the most recently published value, if any.
func (t *Topic[T]) Latest() (T, bool) {
	t.subscriberMu.Lock()
	defer t.subscriberMu.Unlock()
	return t.latest, t.hasLatest
}

// Dropped returns the number of deliveries skipped because a subscriber queue
// was full.
func (t *Topic[T]) Dropped() uint64 {
	t.subscriberMu.Lock()
	defer t.subscriberMu.Unlock()
	return t.dropped
}

// Close closes all subscriber channels. Later publishes are ignored.
func (t *Topic[T]) Close() {
	t.subscriberMu.Lock()
	defer t.subscriberMu.Unlock()
	t.closing = true
	for id, ch := range t.subscribers {
		close(ch)
		delete(t.subscribers, id)
	}
}

// ServeTail streams published values as JSON server-sent events until the
// client disconnects or the topic closes.
func (t *Topic[T]) ServeTail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, c := t.Subscribe()
	defer t.Unsubscribe(id)

	// Send initial ping to establish connection
	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case v, ok := <-c:
			if !ok {
				return
			}
			payload, err := json.Marshal(v)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", t.name, payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// AttachAdminRoutes mounts a live tail of this topic under /debug/tail/<name>.
func (t *Topic[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleSilentFunc("tail/"+t.name, t.ServeTail)
}
