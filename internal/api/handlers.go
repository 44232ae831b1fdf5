package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marcus/taskpilot/internal/manager"
	"github.com/marcus/taskpilot/internal/providers"
	"github.com/marcus/taskpilot/internal/tasks"
)

// taskInput is the request body of POST and PUT /tasks. Pointer fields
// distinguish an omitted value from a zero one.
type taskInput struct {
	ID             *int    `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Priority       string  `json:"priority"`
	EffortHours    float64 `json:"effort_hours"`
	Status         string  `json:"status"`
	AssignedTo     string  `json:"assigned_to"`
	Category       *string `json:"category"`
	RiskAnalysis   *string `json:"risk_analysis"`
	RiskMitigation *string `json:"risk_mitigation"`
	TokenUsage     *int    `json:"token_usage"`
}

func (in taskInput) task() tasks.Task {
	t := tasks.Task{
		Title:          in.Title,
		Description:    in.Description,
		Priority:       tasks.Priority(in.Priority),
		EffortHours:    in.EffortHours,
		Status:         tasks.Status(in.Status),
		AssignedTo:     in.AssignedTo,
		Category:       in.Category,
		RiskAnalysis:   in.RiskAnalysis,
		RiskMitigation: in.RiskMitigation,
	}
	if in.TokenUsage != nil {
		t.TokenUsage = *in.TokenUsage
	}
	t.Normalize()
	return t
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}

func bindTask(c *gin.Context) (taskInput, bool) {
	var in taskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return in, false
	}
	return in, true
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListTasks(c *gin.Context) {
	var f manager.Filter
	if v := c.Query("status"); v != "" {
		st, ok := tasks.ParseStatus(v)
		if !ok {
			respondError(c, &tasks.ValidationError{Field: "status", Reason: "unknown status " + strconv.Quote(v)})
			return
		}
		f.Status = st
	}
	if v := c.Query("priority"); v != "" {
		p, ok := tasks.ParsePriority(v)
		if !ok {
			respondError(c, &tasks.ValidationError{Field: "priority", Reason: "unknown priority " + strconv.Quote(v)})
			return
		}
		f.Priority = p
	}
	f.AssignedTo = c.Query("assigned_to")
	f.Category = c.Query("category")

	list, err := s.tasks.Find(f)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []tasks.Task{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	task, err := s.tasks.GetByID(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleCreateTask(c *gin.Context) {
	in, ok := bindTask(c)
	if !ok {
		return
	}
	task := in.task()
	if err := task.Validate(); err != nil {
		respondError(c, err)
		return
	}

	created, err := s.tasks.Create(task)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	in, ok := bindTask(c)
	if !ok {
		return
	}
	if in.ID != nil && *in.ID != id {
		respondError(c, &tasks.ValidationError{Field: "id", Reason: "must match the id in the path"})
		return
	}

	task := in.task()
	task.ID = id
	if err := task.Validate(); err != nil {
		respondError(c, err)
		return
	}

	existing, err := s.tasks.GetByID(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if in.TokenUsage == nil {
		task.TokenUsage = existing.TokenUsage
	} else if task.TokenUsage < existing.TokenUsage {
		respondError(c, &tasks.ValidationError{Field: "token_usage", Reason: "must not decrease"})
		return
	}

	updated, err := s.tasks.Update(id, task)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	removed, err := s.tasks.Delete(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !removed {
		respondError(c, tasks.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}

func (s *Server) handleAI(op providers.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.ai == nil {
			respondMessage(c, http.StatusServiceUnavailable, "AI operations are not configured")
			return
		}
		id, ok := pathID(c)
		if !ok {
			return
		}

		var run func(context.Context, int) (*tasks.Task, error)
		switch op {
		case providers.OpDescribe:
			run = s.ai.Describe
		case providers.OpCategorize:
			run = s.ai.Categorize
		case providers.OpEstimate:
			run = s.ai.Estimate
		default:
			run = s.ai.Audit
		}

		task, err := run(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func (s *Server) handleAIStatus(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusOK, providers.StatusOf(providers.Config{}))
		return
	}
	c.JSON(http.StatusOK, s.status())
}

func (s *Server) handleAIUsage(c *gin.Context) {
	if s.usage == nil {
		respondMessage(c, http.StatusServiceUnavailable, "usage ledger is disabled")
		return
	}

	var since time.Time
	if v := c.Query("since"); v != "" {
		parsed, err := parseSince(v, time.Now())
		if err != nil {
			respondMessage(c, http.StatusBadRequest, err.Error())
			return
		}
		since = parsed
	}

	summary, err := s.usage.Summary(c.Request.Context(), since)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// parseSince accepts an RFC 3339 timestamp or a duration such as 24h,
// which is taken as relative to now.
func parseSince(v string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, &tasks.ValidationError{Field: "since", Reason: "must be a duration like 24h or an RFC 3339 time"}
	}
	return t, nil
}
