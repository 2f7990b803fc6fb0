package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cleared-dev/spendwise/internal/buildinfo"
	"github.com/cleared-dev/spendwise/internal/importer"
	"github.com/cleared-dev/spendwise/internal/pipeline"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string            `json:"error"`
	Step  pipeline.StepName `json:"step,omitempty"`
	RunID string            `json:"runId,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: buildinfo.Version})
}

func bindInput(c *gin.Context) (pipeline.Input, bool) {
	var in pipeline.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return in, false
	}
	return in, true
}

func (s *Server) createInsights(c *gin.Context) {
	in, ok := bindInput(c)
	if !ok {
		return
	}
	trace, _ := strconv.ParseBool(c.DefaultQuery("trace", "false"))

	report, st, err := s.pipeline.RunReport(c.Request.Context(), in, trace)
	if err != nil {
		resp := ErrorResponse{Error: err.Error()}
		if st != nil {
			resp.RunID = st.RunID
		}
		var se *pipeline.StepError
		if errors.As(err, &se) {
			resp.Step = se.Step
		}
		c.JSON(statusFor(err), resp)
		return
	}
	c.JSON(http.StatusOK, report)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, importer.ErrUnknownFormat):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// streamInsights sends each pipeline event as a server-sent event named
// after its kind. A client disconnect cancels the run.
func (s *Server) streamInsights(c *gin.Context) {
	in, ok := bindInput(c)
	if !ok {
		return
	}

	events := s.pipeline.Stream(c.Request.Context(), in)
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(string(ev.Kind), ev)
		return !ev.Terminal()
	})
}
