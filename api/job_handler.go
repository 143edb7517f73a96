package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"seatwatch"
	"seatwatch/id"
	"seatwatch/job"
	"seatwatch/queue"
)

// defaultHistoryLimit bounds unfiltered history queries.
const defaultHistoryLimit = 50

// SubmitResponse is the payload returned for an accepted submission.
type SubmitResponse struct {
	JobID    string `json:"jobId"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
	Deadline string `json:"deadline"`
}

// JobView is a Job annotated with its queue phase, when it is still queued.
type JobView struct {
	*job.Job
	Phase queue.Phase `json:"phase,omitempty"`
}

// SubmitJob creates a watch job from the request body and enqueues its
// first attempt.
func (h *Handler) SubmitJob(c *gin.Context) {
	var req job.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, fmt.Errorf("%w: %v", seatwatch.ErrValidation, err))
		return
	}

	j, err := h.eng.Submit(c.Request.Context(), principal(c), req)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SubmitResponse{
		JobID:    j.ID.String(),
		Status:   string(j.Status),
		Attempts: j.Attempts,
		Deadline: j.Deadline.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// GetJob returns the job named by the jobId query parameter, with its
// current queue phase when an attempt is pending or running.
func (h *Handler) GetJob(c *gin.Context) {
	jobID, err := jobIDParam(c)
	if err != nil {
		sendError(c, err)
		return
	}

	j, err := h.eng.Get(c.Request.Context(), principal(c), jobID)
	if err != nil {
		sendError(c, err)
		return
	}

	view := JobView{Job: j}
	if phase, ok := h.eng.Queue().Phase(jobID); ok {
		view.Phase = phase
	}
	c.JSON(http.StatusOK, view)
}

// CancelJob cancels the job named by the jobId query parameter.
func (h *Handler) CancelJob(c *gin.Context) {
	jobID, err := jobIDParam(c)
	if err != nil {
		sendError(c, err)
		return
	}

	j, err := h.eng.Cancel(c.Request.Context(), principal(c), jobID)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

// History lists the caller's jobs, newest first. Supports limit, offset
// and status query parameters.
func (h *Handler) History(c *gin.Context) {
	opts := job.ListOpts{Limit: defaultHistoryLimit}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			sendError(c, fmt.Errorf("%w: limit must be a positive integer", seatwatch.ErrValidation))
			return
		}
		opts.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			sendError(c, fmt.Errorf("%w: offset must be a non-negative integer", seatwatch.ErrValidation))
			return
		}
		opts.Offset = n
	}
	if v := c.Query("status"); v != "" {
		opts.Status = job.Status(v)
	}

	jobs, err := h.eng.History(c.Request.Context(), principal(c), opts)
	if err != nil {
		sendError(c, err)
		return
	}
	if jobs == nil {
		jobs = []*job.Job{}
	}
	c.JSON(http.StatusOK, jobs)
}

// Health reports whether the store is reachable.
func (h *Handler) Health(c *gin.Context) {
	if err := h.eng.Store().Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func jobIDParam(c *gin.Context) (id.ID, error) {
	raw := c.Query("jobId")
	if raw == "" {
		return id.ID{}, fmt.Errorf("%w: jobId query parameter required", seatwatch.ErrValidation)
	}
	jobID, err := id.ParseJobID(raw)
	if err != nil {
		return id.ID{}, fmt.Errorf("%w: %v", seatwatch.ErrValidation, err)
	}
	return jobID, nil
}
