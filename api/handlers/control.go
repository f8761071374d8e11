package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/remote-agent-terminal/engine-relay/internal/model"
	"github.com/remote-agent-terminal/engine-relay/internal/supervisor"
)

// DefaultStopTimeout bounds how long POST /api/stop waits for the engine to exit.
const DefaultStopTimeout = 5 * time.Second

// EngineController is the part of the supervisor the control endpoints use.
type EngineController interface {
	Start(ctx context.Context, binary string, args []string) (supervisor.StartResult, error)
	Stop(ctx context.Context) supervisor.StopResult
	Status() supervisor.Status
}

// ControlHandler handles start, stop and status requests for the engine.
type ControlHandler struct {
	ctrl        EngineController
	binary      string
	args        []string
	stopTimeout time.Duration
}

// NewControlHandler creates a ControlHandler that always launches binary with args.
func NewControlHandler(ctrl EngineController, binary string, args []string) *ControlHandler {
	return &ControlHandler{
		ctrl:        ctrl,
		binary:      binary,
		args:        args,
		stopTimeout: DefaultStopTimeout,
	}
}

// StatusResponse is the body of start and stop responses.
type StatusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Start handles POST /api/start - launches the engine.
func (h *ControlHandler) Start(c *gin.Context) {
	result, err := h.ctrl.Start(c.Request.Context(), h.binary, h.args)
	if err != nil {
		if errors.Is(err, model.ErrBinaryNotFound) {
			c.JSON(http.StatusNotFound, StatusResponse{
				Status: string(supervisor.StartBinaryNotFound),
				Error:  "Binary " + h.binary + " not found",
			})
			return
		}
		log.Printf("Failed to start engine: %v", err)
		sendError(c, http.StatusInternalServerError, "START_FAILED", "Failed to start engine: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, StatusResponse{Status: string(result)})
}

// Stop handles POST /api/stop - terminates the engine's process tree.
func (h *ControlHandler) Stop(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.stopTimeout)
	defer cancel()

	result := h.ctrl.Stop(ctx)
	c.JSON(http.StatusOK, StatusResponse{Status: string(result)})
}

// Status handles GET /api/status - reports the supervised process.
func (h *ControlHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.Status())
}

// RegisterRoutes registers the control routes on a Gin router group.
func (h *ControlHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/start", h.Start)
	rg.POST("/stop", h.Stop)
	rg.GET("/status", h.Status)
}
