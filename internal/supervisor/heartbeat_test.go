package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remote-agent-terminal/engine-relay/internal/model"
)

type messageSink struct {
	mu   sync.Mutex
	msgs []model.LogMessage
}

func (s *messageSink) Publish(msg model.LogMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *messageSink) Messages() []model.LogMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.LogMessage, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *messageSink) Formatted() []string {
	var lines []string
	for _, m := range s.Messages() {
		lines = append(lines, m.Format())
	}
	return lines
}

func (s *messageSink) Count(source model.Source) int {
	n := 0
	for _, m := range s.Messages() {
		if m.Source == source {
			n++
		}
	}
	return n
}

func runHeartbeat(t *testing.T, hb *Heartbeat, ctx context.Context) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		hb.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("heartbeat did not stop")
	}
}

func TestHeartbeat_Text(t *testing.T) {
	hb := NewHeartbeat("Moshi", time.Second, func() bool { return false }, func(model.LogMessage) {})
	assert.Equal(t, "Moshi engine is active...", hb.Text())
}

func TestHeartbeat_NothingWhenNotAlive(t *testing.T) {
	sink := &messageSink{}
	hb := NewHeartbeat("Moshi", 10*time.Millisecond, func() bool { return false }, sink.Publish)

	runHeartbeat(t, hb, context.Background())
	assert.Empty(t, sink.Messages())
}

func TestHeartbeat_StopsAtFirstFalse(t *testing.T) {
	sink := &messageSink{}
	var calls atomic.Int32
	probe := func() bool { return calls.Add(1) <= 3 }
	hb := NewHeartbeat("Moshi", 5*time.Millisecond, probe, sink.Publish)

	runHeartbeat(t, hb, context.Background())

	msgs := sink.Messages()
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.Equal(t, model.SourceHeartbeat, m.Source)
		assert.Equal(t, "[HEARTBEAT] Moshi engine is active...", m.Format())
	}
	assert.Equal(t, int32(4), calls.Load())
}

func TestHeartbeat_OnePerInterval(t *testing.T) {
	sink := &messageSink{}
	ctx, cancel := context.WithTimeout(context.Background(), 210*time.Millisecond)
	defer cancel()

	hb := NewHeartbeat("Moshi", 50*time.Millisecond, func() bool { return true }, sink.Publish)
	runHeartbeat(t, hb, ctx)

	// Emits at 0, 50, 100, 150 and 200ms, with slack for a slow scheduler
	n := len(sink.Messages())
	assert.GreaterOrEqual(t, n, 3)
	assert.LessOrEqual(t, n, 5)
}

func TestHeartbeat_CancelStops(t *testing.T) {
	sink := &messageSink{}
	ctx, cancel := context.WithCancel(context.Background())

	hb := NewHeartbeat("Moshi", time.Hour, func() bool { return true }, sink.Publish)

	done := make(chan struct{})
	go func() {
		hb.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(sink.Messages()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("heartbeat ignored cancellation")
	}
	assert.Len(t, sink.Messages(), 1)
}
