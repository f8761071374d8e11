package ws

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/remote-agent-terminal/engine-relay/internal/buffer"
	"github.com/remote-agent-terminal/engine-relay/internal/model"
)

const (
	// DefaultQueueSize is the number of messages that may wait for the hub goroutine.
	DefaultQueueSize = 1024

	// DefaultHistorySize is the number of rendered lines replayed to a new viewer.
	DefaultHistorySize = 200
)

// HubConfig sizes the hub's queue and history.
type HubConfig struct {
	QueueSize   int
	HistorySize int
}

// Hub fans log messages out to every registered connection.
//
// Producers call Publish from any goroutine. A single goroutine running Run
// drains the queue and calls Broadcast, so deliveries never interleave.
type Hub struct {
	registry *Registry
	history  *buffer.RingBuffer[string]
	queue    chan model.LogMessage

	// deliverMu orders a delivery pass against history replay for a new viewer.
	deliverMu sync.Mutex

	dropped atomic.Uint64
}

// NewHub creates a Hub. Zero config values fall back to the defaults.
func NewHub(cfg HubConfig) *Hub {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	return &Hub{
		registry: NewRegistry(),
		history:  buffer.NewRingBuffer[string](cfg.HistorySize),
		queue:    make(chan model.LogMessage, cfg.QueueSize),
	}
}

// Registry returns the hub's connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// HistorySize returns the maximum number of lines replayed on connect.
func (h *Hub) HistorySize() int {
	return h.history.Cap()
}

// Publish hands a message to the hub goroutine without blocking. It reports
// false when the queue is full and the message was dropped.
func (h *Hub) Publish(msg model.LogMessage) bool {
	select {
	case h.queue <- msg:
		return true
	default:
		if h.dropped.Add(1) == 1 {
			log.Printf("Hub queue full, dropping messages")
		}
		return false
	}
}

// Dropped returns how many messages Publish has discarded.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Run delivers queued messages until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.queue:
			h.Broadcast(msg)
		}
	}
}

// Broadcast delivers msg to every registered connection. Connections that
// fail to accept it are removed and closed after the pass. It returns the
// number of connections pruned.
func (h *Hub) Broadcast(msg model.LogMessage) int {
	line := msg.Format()
	data := []byte(line)

	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.history.Push(line)

	var stale []Connection
	h.registry.ForEach(func(conn Connection) {
		if err := conn.Send(data); err != nil {
			stale = append(stale, conn)
		}
	})

	pruned := 0
	for _, conn := range stale {
		if h.registry.Remove(conn) {
			pruned++
		}
		conn.Close()
	}
	if pruned > 0 {
		log.Printf("Pruned %d stale viewer connection(s), %d remaining", pruned, h.registry.Len())
	}
	return pruned
}

// Register replays the recent history to conn and then adds it to the
// registry. A connection that cannot take the history is closed instead.
func (h *Hub) Register(conn Connection) bool {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	for _, line := range h.history.ReadAll() {
		if err := conn.Send([]byte(line)); err != nil {
			conn.Close()
			return false
		}
	}

	h.registry.Add(conn)
	return true
}

// Unregister removes conn and closes it.
func (h *Hub) Unregister(conn Connection) {
	h.registry.Remove(conn)
	conn.Close()
}

// History returns the lines a new viewer would receive.
func (h *Hub) History() []string {
	return h.history.ReadAll()
}

// ClientCount returns the number of connected viewers.
func (h *Hub) ClientCount() int {
	return h.registry.Len()
}

// HasClients returns true if there are connected viewers.
func (h *Hub) HasClients() bool {
	return h.ClientCount() > 0
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	for _, conn := range h.registry.Clear() {
		conn.Close()
	}
}
