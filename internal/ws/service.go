package ws

import (
	"context"
	"sync"

	"github.com/remote-agent-terminal/engine-relay/internal/model"
)

// Service owns the hub and the goroutine that delivers its messages.
type Service struct {
	hub     *Hub
	handler *Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewService creates the hub and starts its delivery goroutine.
func NewService(cfg HubConfig) *Service {
	hub := NewHub(cfg)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		hub:     hub,
		handler: NewHandler(hub),
		cancel:  cancel,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		hub.Run(ctx)
	}()

	return s
}

// Publish forwards a message to the hub without blocking.
func (s *Service) Publish(msg model.LogMessage) {
	s.hub.Publish(msg)
}

// Hub returns the hub.
func (s *Service) Hub() *Hub {
	return s.hub
}

// Handler returns the WebSocket handler.
func (s *Service) Handler() *Handler {
	return s.handler
}

// ClientCount returns the number of connected viewers.
func (s *Service) ClientCount() int {
	return s.hub.ClientCount()
}

// Close stops delivery and disconnects every viewer.
func (s *Service) Close() {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.hub.Close()
	})
}
