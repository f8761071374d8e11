package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/remote-agent-terminal/engine-relay/internal/model"
)

// RunReader is the read side of the run history.
type RunReader interface {
	GetByID(ctx context.Context, id string) (*model.Run, error)
	List(ctx context.Context, limit int) ([]*model.Run, error)
}

// RunHandler serves the run history and transcripts.
type RunHandler struct {
	runs RunReader
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(runs RunReader) *RunHandler {
	return &RunHandler{runs: runs}
}

// RunResponse represents a run in API responses.
type RunResponse struct {
	ID            string   `json:"id"`
	Binary        string   `json:"binary"`
	Args          []string `json:"args"`
	PID           *int     `json:"pid,omitempty"`
	Status        string   `json:"status"`
	ExitCode      *int     `json:"exitCode,omitempty"`
	LastLine      string   `json:"lastLine,omitempty"`
	HasTranscript bool     `json:"hasTranscript"`
	Duration      string   `json:"duration"`
	StartedAt     string   `json:"startedAt"`
	EndedAt       string   `json:"endedAt,omitempty"`
}

func toRunResponse(r *model.Run) *RunResponse {
	resp := &RunResponse{
		ID:            r.ID,
		Binary:        r.Binary,
		Args:          r.Args,
		PID:           r.PID,
		Status:        string(r.Status),
		ExitCode:      r.ExitCode,
		LastLine:      r.LastLine,
		HasTranscript: r.TranscriptPath != "",
		Duration:      formatDuration(r.Duration()),
		StartedAt:     r.StartedAt.Format(time.RFC3339),
	}
	if resp.Args == nil {
		resp.Args = []string{}
	}
	if r.EndedAt != nil {
		resp.EndedAt = r.EndedAt.Format(time.RFC3339)
	}
	return resp
}

// List handles GET /api/runs - lists recent runs, newest first.
func (h *RunHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.runs.List(c.Request.Context(), limit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list runs: "+err.Error())
		return
	}

	response := make([]*RunResponse, len(runs))
	for i, r := range runs {
		response[i] = toRunResponse(r)
	}
	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/runs/:id - gets a specific run.
func (h *RunHandler) Get(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toRunResponse(run))
}

// Transcript handles GET /api/runs/:id/transcript - downloads the asciicast recording.
func (h *RunHandler) Transcript(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}

	if run.TranscriptPath == "" {
		sendError(c, http.StatusNotFound, "TRANSCRIPT_NOT_FOUND", "Transcript not found for run "+run.ID)
		return
	}
	if _, err := os.Stat(run.TranscriptPath); err != nil {
		sendError(c, http.StatusNotFound, "TRANSCRIPT_NOT_FOUND", model.ErrTranscriptNotFound.Error()+": "+run.ID)
		return
	}

	c.Header("Content-Type", "application/x-asciicast")
	c.Header("Content-Disposition", "attachment; filename="+run.ID+".cast")
	c.File(run.TranscriptPath)
}

func (h *RunHandler) lookup(c *gin.Context) (*model.Run, bool) {
	runID := c.Param("id")
	if runID == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Run ID is required")
		return nil, false
	}

	run, err := h.runs.GetByID(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, model.ErrRunNotFound) {
			sendError(c, http.StatusNotFound, "RUN_NOT_FOUND", "Run "+runID+" not found")
			return nil, false
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get run: "+err.Error())
		return nil, false
	}
	return run, true
}

// RegisterRoutes registers the run history routes on a Gin router group.
func (h *RunHandler) RegisterRoutes(rg *gin.RouterGroup) {
	runs := rg.Group("/runs")
	{
		runs.GET("", h.List)
		runs.GET("/:id", h.Get)
		runs.GET("/:id/transcript", h.Transcript)
	}
}
