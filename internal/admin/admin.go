// Package admin implements the Admin Control Surface (spec §4.11): an
// HTTP API over go-chi for enabling/disabling the scheduler and monitor,
// clearing queues, force-releasing stuck platform locks, requesting
// worker restarts, and introspecting the system's live state, plus a
// websocket feed that mirrors every state-changing write.
package admin

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/scoutgrid/orchestrator/internal/events"
	"github.com/scoutgrid/orchestrator/internal/jobs"
	"github.com/scoutgrid/orchestrator/internal/lock"
	"github.com/scoutgrid/orchestrator/internal/monitorstate"
	"github.com/scoutgrid/orchestrator/internal/schedulerstate"
)

// MonitorTaskInfo is the static task metadata the admin surface needs to
// introspect per-task state; it mirrors config.MonitorTask without
// importing internal/config (avoids an import cycle with cmd/server).
type MonitorTaskInfo struct {
	ID   string
	Name string
}

// Config wires the repositories and static metadata the admin surface
// reads and mutates.
type Config struct {
	Platforms    []string
	MonitorTasks []MonitorTaskInfo

	Jobs           *jobs.Repository
	Locks          *lock.Lock
	SchedulerState *schedulerstate.Repository
	MonitorState   *monitorstate.Repository
	Bus            *events.Bus
}

// Server is the Admin Control Surface.
type Server struct {
	cfg Config
	log zerolog.Logger
	mux *chi.Mux
}

// New builds a Server with all routes registered.
func New(cfg Config, log zerolog.Logger) *Server {
	s := &Server{cfg: cfg, log: log.With().Str("component", "admin").Logger()}
	s.mux = s.routes()
	return s
}

// Handler returns the http.Handler to mount (e.g. via http.ListenAndServe).
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/admin", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/stream", s.handleStream)

		r.Post("/scheduler/enable", s.handleSchedulerEnable)
		r.Post("/scheduler/disable", s.handleSchedulerDisable)
		r.Get("/scheduler/status", s.handleSchedulerStatus)

		r.Post("/monitor/{task}/enable", s.handleMonitorEnable)
		r.Post("/monitor/{task}/disable", s.handleMonitorDisable)
		r.Get("/monitor/status", s.handleMonitorStatus)

		r.Get("/platform/{platform}/queue", s.handlePlatformQueue)
		r.Post("/platform/{platform}/queue/clear", s.handleQueueClear)
		r.Post("/platform/{platform}/force-release", s.handleForceRelease)
		r.Post("/platform/{platform}/restart", s.handleWorkerRestart)
		r.Get("/platform/{platform}/running", s.handleRunningJob)
	})

	return r
}

func (s *Server) publish(eventType events.EventType, data map[string]interface{}) {
	if s.cfg.Bus != nil {
		s.cfg.Bus.Emit(eventType, "admin", data)
	}
}

// elapsedSeconds is used by the running-job introspection response.
func elapsedSeconds(since time.Time) float64 {
	if since.IsZero() {
		return 0
	}
	return time.Since(since).Seconds()
}
