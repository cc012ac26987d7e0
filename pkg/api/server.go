package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nurturehq/nurture/pkg/analytics"
	"github.com/nurturehq/nurture/pkg/httputil"
	"github.com/nurturehq/nurture/pkg/middleware"
	"github.com/nurturehq/nurture/pkg/observability"
	"github.com/nurturehq/nurture/pkg/storage"
)

const apiPrefix = "/api/v1/analytics"

// archiveTimeout bounds a background export upload
const archiveTimeout = 30 * time.Second

// Server is the analytics HTTP API
type Server struct {
	router  *mux.Router
	handler http.Handler

	service       *analytics.Service
	logger        *observability.Logger
	archive       storage.Archive
	archivePrefix string
	metrics       *observability.Metrics
	limiter       middleware.Limiter
	proxies       httputil.TrustedProxies
	corsOrigins   []string
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithArchive stores a copy of every CSV export under prefix
func WithArchive(archive storage.Archive, prefix string) ServerOption {
	return func(s *Server) {
		s.archive = archive
		s.archivePrefix = prefix
	}
}

// WithMetrics records HTTP request metrics
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithRateLimiter limits refresh and export requests per client
func WithRateLimiter(l middleware.Limiter) ServerOption {
	return func(s *Server) { s.limiter = l }
}

// WithTrustedProxies identifies clients by X-Forwarded-For when the request
// arrives through one of proxies
func WithTrustedProxies(proxies httputil.TrustedProxies) ServerOption {
	return func(s *Server) { s.proxies = proxies }
}

// WithCORS allows browser requests from origins
func WithCORS(origins ...string) ServerOption {
	return func(s *Server) { s.corsOrigins = origins }
}

// NewServer creates the API server and its routes
func NewServer(service *analytics.Service, logger *observability.Logger, opts ...ServerOption) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		service: service,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()

	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
		httputil.LoggingMiddleware(logger),
	}
	if len(s.corsOrigins) > 0 {
		chain = append(chain, httputil.CORSMiddleware(s.corsOrigins))
	}
	s.handler = otelhttp.NewHandler(httputil.Chain(chain...)(s.router), "nurture-api")
	return s
}

func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.Use(mux.MiddlewareFunc(observability.HTTPMetricsMiddleware(s.metrics)))
	}

	// Routes sit on the root router so a wrong method answers 405; a
	// PathPrefix subrouter reports it as 404.
	s.router.HandleFunc(apiPrefix+"/windows", s.listWindows).Methods(http.MethodGet)
	s.router.HandleFunc(apiPrefix+"/snapshot", s.getSnapshot).Methods(http.MethodGet)
	s.router.HandleFunc(apiPrefix+"/latest", s.getLatest).Methods(http.MethodGet)
	s.router.Handle(apiPrefix+"/refresh", s.limited("refresh", s.refreshSnapshot)).Methods(http.MethodPost)
	s.router.Handle(apiPrefix+"/export", s.limited("export", s.exportCSV)).Methods(http.MethodGet)
}

func (s *Server) limited(scope string, h http.HandlerFunc) http.Handler {
	if s.limiter == nil {
		return h
	}
	return middleware.RateLimit(s.limiter, scope, s.proxies, s.logger)(h)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
