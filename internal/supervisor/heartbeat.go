package supervisor

import (
	"context"
	"time"

	"github.com/remote-agent-terminal/engine-relay/internal/model"
)

// DefaultHeartbeatInterval is the pause between two heartbeats.
const DefaultHeartbeatInterval = 5 * time.Second

// LivenessProbe reports whether the supervised process is still running.
type LivenessProbe func() bool

// Heartbeat publishes a periodic liveness message while a probe holds.
type Heartbeat struct {
	text     string
	interval time.Duration
	alive    LivenessProbe
	emit     func(model.LogMessage)
}

// NewHeartbeat creates a heartbeat announcing "<engineName> engine is active...".
func NewHeartbeat(engineName string, interval time.Duration, alive LivenessProbe, emit func(model.LogMessage)) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeat{
		text:     engineName + " engine is active...",
		interval: interval,
		alive:    alive,
		emit:     emit,
	}
}

// Text returns the heartbeat message text.
func (h *Heartbeat) Text() string {
	return h.text
}

// Run emits one heartbeat, waits the interval and repeats. It returns the
// first time the probe fails or when ctx is cancelled.
func (h *Heartbeat) Run(ctx context.Context) {
	timer := time.NewTimer(h.interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil || !h.alive() {
			return
		}

		h.emit(model.NewLogMessage(model.SourceHeartbeat, h.text))

		timer.Reset(h.interval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}
