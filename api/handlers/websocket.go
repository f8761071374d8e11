package handlers

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/remote-agent-terminal/engine-relay/internal/ws"
)

// WebSocketHandler attaches live viewers to the relay.
type WebSocketHandler struct {
	wsHandler *ws.Handler
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(wsHandler *ws.Handler) *WebSocketHandler {
	return &WebSocketHandler{wsHandler: wsHandler}
}

// Connect handles GET /ws - upgrades to a WebSocket that receives every relayed line.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	if err := h.wsHandler.HandleConnection(c.Writer, c.Request); err != nil {
		// The upgrader has already written the HTTP error
		log.Printf("WebSocket upgrade failed: %v", err)
	}
}

// RegisterRoutes registers the WebSocket route.
func (h *WebSocketHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws", h.Connect)
}
