package serialmux

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/banshee-data/lookahead/internal/monitoring"
)

// MockSerialPort implements SerialPorter over an in-process pipe. Commands
// written to it are discarded.
type MockSerialPort struct {
	r *io.PipeReader
}

func (m *MockSerialPort) Read(p []byte) (int, error)  { return m.r.Read(p) }
func (m *MockSerialPort) Write(p []byte) (int, error) { return len(p), nil }
func (m *MockSerialPort) Close() error                { return m.r.Close() }

// NewReplaySerialMux creates a SerialMux whose port emits lines one at a time,
// interval apart; an interval <= 0 writes them back to back. When the lines
// are exhausted the port stays open and idle until closed.
func NewReplaySerialMux(lines []string, interval time.Duration) *SerialMux[*MockSerialPort] {
	r, w := io.Pipe()
	port := &MockSerialPort{r: r}

	go func() {
		var tick <-chan time.Time
		if interval > 0 {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			tick = ticker.C
		}
		for _, line := range lines {
			if _, err := io.WriteString(w, line+"\n"); err != nil {
				return
			}
			if tick != nil {
				<-tick
			}
		}
	}()

	return NewSerialMux(port)
}

// LoadFixture reads a replay fixture: one message per line, blank lines and
// lines starting with '#' ignored.
func LoadFixture(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	monitoring.Logf("loaded %d fixture lines from %s", len(lines), path)
	return lines, nil
}
