package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/aescanero/dagoml/internal/application/orchestrator"
	"github.com/aescanero/dagoml/pkg/ports"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func abort(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"active_runs": s.runs.ActiveRuns(),
	}

	if s.health != nil {
		pool := s.health.GetStatus()
		body["workers"] = pool
		if !pool.Healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
		}
	}

	c.JSON(status, body)
}

// handleListRuns lists run records, newest first
func (s *Server) handleListRuns(c *gin.Context) {
	runs, err := s.runs.ListRuns(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list runs", zap.Error(err))
		abort(c, http.StatusInternalServerError, "STORAGE_ERROR", "failed to list runs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

// handleGetRun returns one run record
func (s *Server) handleGetRun(c *gin.Context) {
	runID := c.Param("id")

	run, err := s.runs.GetRun(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			abort(c, http.StatusNotFound, "NOT_FOUND", "run not found")
			return
		}
		s.logger.Error("failed to get run", zap.String("run_id", runID), zap.Error(err))
		abort(c, http.StatusInternalServerError, "STORAGE_ERROR", "failed to get run")
		return
	}

	c.JSON(http.StatusOK, run)
}

// handleCancelRun cancels an active run
func (s *Server) handleCancelRun(c *gin.Context) {
	runID := c.Param("id")

	if err := s.runs.CancelRun(c.Request.Context(), runID); err != nil {
		if errors.Is(err, orchestrator.ErrRunNotActive) {
			if _, getErr := s.runs.GetRun(c.Request.Context(), runID); errors.Is(getErr, ports.ErrNotFound) {
				abort(c, http.StatusNotFound, "NOT_FOUND", "run not found")
				return
			}
			abort(c, http.StatusConflict, "RUN_NOT_ACTIVE", err.Error())
			return
		}
		s.logger.Error("failed to cancel run", zap.String("run_id", runID), zap.Error(err))
		abort(c, http.StatusInternalServerError, "CANCELLATION_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":       runID,
		"status":       "cancelling",
		"requested_at": time.Now().UTC(),
	})
}
