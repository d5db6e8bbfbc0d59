package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"billcal/internal/datasource"
	applog "billcal/internal/log"
	"billcal/internal/middleware/ratelimit"
	"billcal/internal/middleware/security"
	"billcal/internal/middleware/trace"
	"billcal/internal/services"
	appweb "billcal/web"
)

// Options configures NewServer. Bills is required.
type Options struct {
	Addr  string
	Bills *services.BillService
	// Pinger backs /readyz; nil means always ready.
	Pinger             datasource.Pinger
	Logger             *applog.Logger
	RateLimitPerMinute int
	// Now is the clock used for "today"; nil means time.Now.
	Now func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	bills     *services.BillService
	pinger    datasource.Pinger
	logger    *applog.Logger
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	metrics   *trace.Metrics
	registry  *prometheus.Registry
	now       func() time.Time
	started   time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Server{
		bills:    opts.Bills,
		pinger:   opts.Pinger,
		logger:   opts.Logger.WithComponent(applog.ComponentHTTP),
		detector: security.NewDetector(),
		metrics:  trace.NewMetrics(reg),
		registry: reg,
		now:      opts.Now,
		started:  opts.Now(),
	}
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: opts.RateLimitPerMinute,
		OnReject:          s.metrics.RateLimited.Inc,
	})

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(opts.Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(logger *applog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)
	r.Use(applog.Middleware(logger))
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.detector.Middleware(s.metrics.SuspiciousRequests.Inc))
	r.Use(s.limiter.Middleware(s.detector.ClientIP, s.handleRateLimited))

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.Handle("/static/*", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	r.Get("/", s.handleIndex)
	r.Get("/ui/calendar", s.handleCalendar)

	r.Get("/ui/instances/new", s.handleNewInstanceModal)
	r.Get("/ui/instances/{id}/edit", s.handleEditInstanceModal)
	r.Post("/instances", s.handleCreateInstance)
	r.Put("/instances/{id}", s.handleUpdateInstance)
	r.Post("/instances/{id}/paid", s.handleTogglePaid)
	r.Delete("/instances/{id}", s.handleDeleteInstance)

	r.Get("/profiles", s.handleProfilesPage)
	r.Get("/ui/profiles", s.handleProfilesList)
	r.Post("/profiles", s.handleCreateProfile)
	r.Put("/profiles/{id}", s.handleUpdateProfile)
	r.Delete("/profiles/{id}", s.handleDeleteProfile)
	r.Post("/profiles/{id}/bills", s.handleCreateBill)
	r.Delete("/bills/{id}", s.handleDeleteBill)

	return r
}

// Shutdown gracefully shuts down the server and the limiter's cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Registry exposes the Prometheus registry so binaries can add collectors.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}
