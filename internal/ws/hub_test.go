package ws

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remote-agent-terminal/engine-relay/internal/model"
)

func TestHubBroadcastPrunesFailingConnections(t *testing.T) {
	hub := NewHub(HubConfig{})
	defer hub.Close()

	conns := newFakeConns(6, func(i int) bool { return i%3 == 0 })
	for _, c := range conns {
		require.True(t, hub.Register(c))
	}

	pruned := hub.Broadcast(model.LogMessage{Source: model.SourceOut, Text: "ready"})

	assert.Equal(t, 2, pruned)
	assert.Equal(t, 4, hub.ClientCount())
	for i, c := range conns {
		if i%3 == 0 {
			assert.True(t, c.Closed(), "failing conn %d should be closed", i)
			assert.False(t, hub.Registry().Contains(c))
			continue
		}
		assert.Equal(t, []string{"[OUT] ready"}, c.Received(), "conn %d", i)
		assert.False(t, c.Closed())
	}
}

func TestHubBroadcastWithoutClients(t *testing.T) {
	hub := NewHub(HubConfig{})
	assert.Equal(t, 0, hub.Broadcast(model.LogMessage{Source: model.SourceErr, Text: "nobody listening"}))
	assert.Equal(t, []string{"[ERR] nobody listening"}, hub.History())
}

func TestHubRunPreservesOrder(t *testing.T) {
	hub := NewHub(HubConfig{QueueSize: 256})
	conn := newFakeConn("viewer", false)
	hub.Register(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	for i := 0; i < 100; i++ {
		require.True(t, hub.Publish(model.LogMessage{Source: model.SourceOut, Text: fmt.Sprintf("line %d", i)}))
	}

	require.Eventually(t, func() bool { return len(conn.Received()) == 100 }, 2*time.Second, 10*time.Millisecond)
	for i, line := range conn.Received() {
		assert.Equal(t, fmt.Sprintf("[OUT] line %d", i), line)
	}
}

func TestHubPublishDropsWhenQueueFull(t *testing.T) {
	hub := NewHub(HubConfig{QueueSize: 2})

	assert.True(t, hub.Publish(model.LogMessage{Text: "1"}))
	assert.True(t, hub.Publish(model.LogMessage{Text: "2"}))
	assert.False(t, hub.Publish(model.LogMessage{Text: "3"}))
	assert.Equal(t, uint64(1), hub.Dropped())
}

func TestHubRegisterReplaysHistory(t *testing.T) {
	hub := NewHub(HubConfig{HistorySize: 2})
	hub.Broadcast(model.LogMessage{Source: model.SourceOut, Text: "one"})
	hub.Broadcast(model.LogMessage{Source: model.SourceOut, Text: "two"})
	hub.Broadcast(model.LogMessage{Source: model.SourceErr, Text: "three"})

	late := newFakeConn("late", false)
	require.True(t, hub.Register(late))
	hub.Broadcast(model.LogMessage{Source: model.SourceHeartbeat, Text: "alive"})

	assert.Equal(t, []string{"[OUT] two", "[ERR] three", "[HEARTBEAT] alive"}, late.Received())
}

func TestHubRegisterRejectsBrokenConnection(t *testing.T) {
	hub := NewHub(HubConfig{})
	hub.Broadcast(model.LogMessage{Source: model.SourceOut, Text: "history"})

	broken := newFakeConn("broken", true)
	assert.False(t, hub.Register(broken))
	assert.True(t, broken.Closed())
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubUnregisterAndClose(t *testing.T) {
	hub := NewHub(HubConfig{})
	a := newFakeConn("a", false)
	b := newFakeConn("b", false)
	hub.Register(a)
	hub.Register(b)

	hub.Unregister(a)
	assert.True(t, a.Closed())
	assert.Equal(t, 1, hub.ClientCount())
	assert.True(t, hub.HasClients())

	hub.Close()
	assert.True(t, b.Closed())
	assert.False(t, hub.HasClients())
}

func TestHubRunStopsOnCancel(t *testing.T) {
	hub := NewHub(HubConfig{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
