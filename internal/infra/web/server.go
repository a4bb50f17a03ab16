package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"autoshorts/internal/domain/model"
	"autoshorts/internal/domain/ports/repository"
	"autoshorts/internal/infra/api"
	"autoshorts/internal/infra/logging"
	"autoshorts/internal/usecase"
)

// Generator queues a generation and returns the recorded job.
type Generator interface {
	Enqueue(ctx context.Context, req usecase.GenerateRequest, done func(*model.GenerationJob, error)) (*model.GenerationJob, error)
}

type Deps struct {
	Ledger    usecase.LedgerUseCase
	Scheduler usecase.SchedulerUseCase
	Trigger   usecase.TriggerUseCase
	Generator Generator
	Artifacts repository.ArtifactStore
	Limiter   repository.RateLimiter
}

type Options struct {
	AdminKey   string
	CronSecret string
	RateLimit  int
	RateWindow time.Duration
	// RequestTimeout bounds operator API calls; the trigger runs unbounded.
	RequestTimeout time.Duration
}

type Server struct {
	Deps
	opts Options
	auth *AuthManager
	log  *zerolog.Logger
}

func NewServer(deps Deps, opts Options, auth *AuthManager, logger *zerolog.Logger) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 6
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Hour
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	l := logger.With().Str("component", "HTTP").Logger()
	return &Server{Deps: deps, opts: opts, auth: auth, log: &l}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(api.Recover(s.log), api.TraceID(s.log), api.RequestLog(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/api/cron/trigger", s.trigger)
	r.Post("/api/cron/trigger", s.trigger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session", s.createSession)
		r.Delete("/session", s.deleteSession)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession, api.Timeout(s.opts.RequestTimeout))

			r.Get("/stats", s.stats)
			r.Get("/jobs", s.listJobs)
			r.Post("/jobs", s.createJob)
			r.Get("/jobs/{id}", s.getJob)
			r.Post("/jobs/{id}/publish", s.publishJob)

			r.Get("/automation", s.getAutomation)
			r.Put("/automation", s.updateAutomation)
			r.Post("/automation/evaluate", s.evaluateAutomation)

			// Artifact refs contain slashes.
			r.Get("/artifacts/*", s.artifact)
		})
	})
	return r
}

// requireSession accepts a Bearer session token or the session cookie.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) reqLog(r *http.Request) *zerolog.Logger {
	return logging.With(r.Context(), s.log)
}
