package api

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/cogserver/internal/api/handlers"
	mw "github.com/Harshitk-cp/cogserver/internal/api/middleware"
	"github.com/Harshitk-cp/cogserver/internal/buildconfig"
	"github.com/Harshitk-cp/cogserver/internal/request"
	"github.com/Harshitk-cp/cogserver/internal/server"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Options struct {
	APIKey         string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
	// Agents may be triggered on demand through /v1/agents/{name}/run.
	Agents []server.MindAgent
}

// App holds the router and the server it fronts.
type App struct {
	Router       *chi.Mux
	srv          *server.Server
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(srv *server.Server, proc *request.Processor, opts Options, logger *zap.Logger) *App {
	atomHandler := handlers.NewAtomHandler(srv, opts.RequestTimeout)
	commandHandler := handlers.NewCommandHandler(srv, proc, opts.RequestTimeout)
	agentHandler := handlers.NewAgentHandler(srv, opts.RequestTimeout, opts.Agents...)
	consoleHandler := handlers.NewConsoleHandler(srv, proc, logger.Named("console"))

	r := chi.NewRouter()
	app := &App{
		Router:    r,
		srv:       srv,
		startTime: time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))

	// No auth
	r.Get("/health", app.healthHandler())
	r.Get("/metrics", app.metricsHandler())
	r.Handle("/metrics/prometheus", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(mw.APIKeyAuth(opts.APIKey))

		r.Route("/rest/0.2/atom", func(r chi.Router) {
			r.Post("/", atomHandler.Create)
			r.Get("/{handle}", atomHandler.Get)
		})

		r.Route("/v1", func(r chi.Router) {
			r.Post("/requests", commandHandler.Run)
			r.Get("/console", consoleHandler.Serve)
			r.Route("/agents", func(r chi.Router) {
				r.Get("/", agentHandler.List)
				r.Post("/{name}/run", agentHandler.Run)
			})
		})
	})

	return app
}

// healthHandler reports without touching the loop, so it answers even while
// a bulk operation holds the table.
func (app *App) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := app.srv.Stats()
		status, code := "ok", http.StatusOK
		if stats.State != server.Running.String() {
			status, code = "stopped", http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"status":  status,
			"cycle":   stats.Cycle,
			"version": buildconfig.VersionInfo(),
		})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)
		stats := app.srv.Stats()

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"server":         stats,
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}
		writeJSON(w, http.StatusOK, response)
	}
}
