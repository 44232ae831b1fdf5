// Package api serves the task CRUD and AI routes over HTTP using gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marcus/taskpilot/internal/logging"
	"github.com/marcus/taskpilot/internal/manager"
	"github.com/marcus/taskpilot/internal/providers"
	"github.com/marcus/taskpilot/internal/stats"
	"github.com/marcus/taskpilot/internal/tasks"
)

// TaskService is the CRUD surface the handlers need. *manager.Manager
// satisfies it.
type TaskService interface {
	GetAll() ([]tasks.Task, error)
	GetByID(id int) (*tasks.Task, error)
	Create(task tasks.Task) (*tasks.Task, error)
	Update(id int, task tasks.Task) (*tasks.Task, error)
	Delete(id int) (bool, error)
	Find(f manager.Filter) ([]tasks.Task, error)
}

// AIService runs the AI operations. *orchestrator.Orchestrator satisfies it.
type AIService interface {
	Describe(ctx context.Context, id int) (*tasks.Task, error)
	Categorize(ctx context.Context, id int) (*tasks.Task, error)
	Estimate(ctx context.Context, id int) (*tasks.Task, error)
	Audit(ctx context.Context, id int) (*tasks.Task, error)
}

// UsageSource aggregates recorded AI calls. *stats.Ledger satisfies it.
type UsageSource interface {
	Summary(ctx context.Context, since time.Time) (*stats.Summary, error)
}

// Server is the taskpilot HTTP server.
type Server struct {
	tasks  TaskService
	ai     AIService
	status func() providers.Status
	usage  UsageSource
	mode   string
	logger *logging.Logger
	router *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithStatus sets the source of GET /ai/status.
func WithStatus(fn func() providers.Status) Option {
	return func(s *Server) {
		s.status = fn
	}
}

// WithUsage enables GET /ai/usage.
func WithUsage(u UsageSource) Option {
	return func(s *Server) {
		s.usage = u
	}
}

// WithMode sets the gin mode (release, debug or test).
func WithMode(mode string) Option {
	return func(s *Server) {
		s.mode = mode
	}
}

// WithLogger sets the access and error logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer builds the router. ai may be nil, in which case the AI routes
// answer 503.
func NewServer(taskSvc TaskService, aiSvc AIService, opts ...Option) *Server {
	s := &Server{
		tasks:  taskSvc,
		ai:     aiSvc,
		mode:   gin.ReleaseMode,
		logger: logging.Component("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mode != "" {
		gin.SetMode(s.mode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(s.logger))

	router.GET("/health", s.handleHealth)

	router.GET("/tasks", s.handleListTasks)
	router.GET("/tasks/:id", s.handleGetTask)
	router.POST("/tasks", s.handleCreateTask)
	router.PUT("/tasks/:id", s.handleUpdateTask)
	router.DELETE("/tasks/:id", s.handleDeleteTask)

	group := router.Group("/ai")
	{
		group.POST("/tasks/describe/:id", s.handleAI(providers.OpDescribe))
		group.POST("/tasks/categorize/:id", s.handleAI(providers.OpCategorize))
		group.POST("/tasks/estimate/:id", s.handleAI(providers.OpEstimate))
		group.POST("/tasks/audit/:id", s.handleAI(providers.OpAudit))
		group.GET("/status", s.handleAIStatus)
		group.GET("/usage", s.handleAIUsage)
	}

	s.router = router
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoCtx("listening", map[string]any{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
