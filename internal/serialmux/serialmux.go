// Package serialmux reads newline-delimited messages from the vehicle bridge
// on a serial port and fans each line out to any number of subscribers. The
// bridge forwards pose, route, traffic and obstacle messages; commands can
// be written back to it.
package serialmux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"tailscale.com/tsweb"
)

var ErrWriteFailed = errors.New("failed to write to serial port")

// SerialMuxInterface is the surface shared by the real, replay and disabled
// multiplexers.
type SerialMuxInterface interface {
	// Subscribe returns an ID and a channel of raw lines. A closed mux
	// returns an already closed channel.
	Subscribe() (string, chan string)
	// Unsubscribe closes and forgets the channel with the given ID.
	Unsubscribe(string)
	// SendCommand writes one line to the bridge.
	SendCommand(string) error
	// Monitor pumps lines from the port to subscribers until ctx is done or
	// the port is exhausted.
	Monitor(context.Context) error
	// Close closes every subscription and the port.
	Close() error
	// AttachAdminRoutes mounts debug handlers under /debug/.
	AttachAdminRoutes(*http.ServeMux)
}

// subscriberBuffer lets a slow subscriber absorb a short burst of lines.
const subscriberBuffer = 64

// SerialMux multiplexes one port of type T.
type SerialMux[T SerialPorter] struct {
	port      T
	commandMu sync.Mutex
	subs      *fanout
}

// NewSerialMux wraps port. Nothing is read until Monitor runs.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{port: port, subs: newFanout(subscriberBuffer)}
}

func (s *SerialMux[T]) Subscribe() (string, chan string) { return s.subs.subscribe() }

func (s *SerialMux[T]) Unsubscribe(id string) { s.subs.unsubscribe(id) }

// Dropped returns how many line deliveries were skipped because a
// subscriber's buffer was full.
func (s *SerialMux[T]) Dropped() uint64 { return s.subs.droppedCount() }

// SendCommand writes command to the port, newline terminated.
func (s *SerialMux[T]) SendCommand(command string) error {
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}

	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	n, err := io.WriteString(s.port, command)
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads the port line by line until ctx is cancelled, the port
// returns EOF or the mux is closed. Read errors other than EOF are returned.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	// Scan blocks on the port, so it gets its own goroutine and the loop
	// below stays responsive to ctx.
	go func() {
		defer close(lines)
		scan := bufio.NewScanner(s.port)
		// a route snapshot is one line and can be large
		scan.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scan.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if !s.subs.broadcast(line) {
				return nil
			}
		}
	}
}

// Close closes every subscription and then the port.
func (s *SerialMux[T]) Close() error {
	s.subs.close()
	return s.port.Close()
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleSilentFunc("serial/send-command", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if err := s.SendCommand(command); err != nil {
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "Wrote command %q to serial port", command)
	})

	debug.HandleSilentFunc("serial/tail", func(w http.ResponseWriter, r *http.Request) {
		ServeTail(s, w, r)
	})
}

// ServeTail streams raw lines from m as server-sent events until the client
// goes away or m closes the subscription.
func ServeTail(m SerialMuxInterface, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, c := m.Subscribe()
	defer m.Unsubscribe(id)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}
	io.WriteString(w, ": ping\n\n")
	flush()

	for {
		select {
		case line, ok := <-c:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ClassifyPayload(line), line); err != nil {
				return
			}
			flush()
		case <-r.Context().Done():
			return
		}
	}
}
