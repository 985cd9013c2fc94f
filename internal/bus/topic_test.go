package bus

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/lookahead/internal/waypoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic_FanOut(t *testing.T) {
	topic := NewTopic[int]("numbers")
	id1, c1 := topic.Subscribe()
	_, c2 := topic.Subscribe()

	topic.Publish(7)
	assert.Equal(t, 7, <-c1)
	assert.Equal(t, 7, <-c2)

	topic.Unsubscribe(id1)
	_, ok := <-c1
	assert.False(t, ok, "unsubscribed channel should be closed")

	topic.Publish(8)
	assert.Equal(t, 8, <-c2)
}

func TestTopic_Latest(t *testing.T) {
	topic := NewTopic[string]("s")
	_, ok := topic.Latest()
	assert.False(t, ok)

	topic.Publish("a")
	topic.Publish("b")
	v, ok := topic.Latest()
	require.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestTopic_DropsWhenFull(t *testing.T) {
	topic := NewTopic[int]("n")
	_, c := topic.Subscribe()
	for i := 0; i < DefaultQueueSize+3; i++ {
		topic.Publish(i)
	}
	assert.Equal(t, uint64(3), topic.Dropped())
	assert.Equal(t, 0, <-c)
}

func TestTopic_Close(t *testing.T) {
	topic := NewTopic[int]("n")
	_, c := topic.Subscribe()
	topic.Close()
	_, ok := <-c
	assert.False(t, ok)

	topic.Publish(1)
	_, has := topic.Latest()
	assert.False(t, has, "publish after close is ignored")

	_, late := topic.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing to a closed topic yields a closed channel")

	// Unsubscribe of an unknown id is a no-op.
	topic.Unsubscribe("missing")
}

func TestTopic_ServeTail(t *testing.T) {
	b := New()
	srv := httptest.NewServer(http.HandlerFunc(b.Traffic.ServeTail))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	ping, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": ping\n", ping)

	// the subscription is registered before the ping is flushed
	b.Traffic.Publish(waypoint.TrafficWaypoint{Index: 42})

	var lines []string
	for len(lines) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	assert.Equal(t, "event: "+TopicTrafficWaypoint, lines[0])
	assert.Equal(t, `data: {"index":42}`, lines[1])
}

func TestTopic_ServeTailRejectsPost(t *testing.T) {
	topic := NewTopic[int]("n")
	rec := httptest.NewRecorder()
	topic.ServeTail(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBus_AttachAdminRoutes(t *testing.T) {
	b := New()
	mux := http.NewServeMux()
	b.AttachAdminRoutes(mux)

	_, pattern := mux.Handler(httptest.NewRequest(http.MethodGet, "/debug/tail/"+TopicFinalWaypoints, nil))
	assert.Equal(t, "/debug/tail/"+TopicFinalWaypoints, pattern)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/debug/tail/"+TopicFinalWaypoints, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	ping, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": ping\n", ping)

	b.Close()
	_, ok := b.Window.Latest()
	assert.False(t, ok)

	// closing the topic ends the stream
	_, err = io.ReadAll(reader)
	assert.NoError(t, err)
}
