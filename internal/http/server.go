// Package http serves the fleet over a JSON API.
package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"flota/internal/advisor"
	"flota/internal/core"
	applog "flota/internal/log"
	"flota/internal/middleware/ratelimit"
	"flota/internal/middleware/security"
	"flota/internal/middleware/trace"
	"flota/internal/repo"
	"flota/internal/services"
)

// Advisor is the AI assistant surface used by the API.
type Advisor interface {
	SuggestMaintenance(ctx context.Context, brand, model string, year, km int) ([]core.Suggestion, error)
	VehicleAdvice(ctx context.Context, v core.Vehicle, txs []core.Transaction) ([]advisor.Advice, error)
	AnalyzeFleet(ctx context.Context, vehicles []core.Vehicle, txs []core.Transaction) (*advisor.FleetAnalysis, error)
}

// Pinger is implemented by backends that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the optional parts of the server.
type Options struct {
	// Advisor may be nil; AI endpoints then answer 503.
	Advisor Advisor
	// PasswordHash is a bcrypt hash of the shared dashboard password.
	PasswordHash string
	Logger       *applog.Logger
	RateLimit    ratelimit.Config
}

// Server is the fleet JSON API.
type Server struct {
	http.Server
	fleet    *services.FleetService
	advisor  Advisor
	logger   *applog.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
}

func NewServer(addr string, fleet *services.FleetService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if opts.RateLimit.RequestsPerMinute == 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}

	s := &Server{
		fleet:    fleet,
		advisor:  opts.Advisor,
		logger:   logger.WithComponent(applog.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: security.NewDetector(logger),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/vehicles", s.handleListVehicles)
	mux.HandleFunc("POST /api/vehicles", s.handleRegisterVehicle)
	mux.HandleFunc("GET /api/vehicles/{id}", s.handleGetVehicle)
	mux.HandleFunc("PUT /api/vehicles/{id}/odometer", s.handleUpdateOdometer)
	mux.HandleFunc("PUT /api/vehicles/{id}/documents", s.handleUpdateDocuments)
	mux.HandleFunc("PUT /api/vehicles/{id}/driver", s.handleUpdateDriver)
	mux.HandleFunc("PUT /api/vehicles/{id}/rules/{category}/override", s.handleSetOverride)
	mux.HandleFunc("GET /api/vehicles/{id}/maintenance", s.handleMaintenance)
	mux.HandleFunc("POST /api/vehicles/{id}/suggestions", s.handleSuggestions)
	mux.HandleFunc("GET /api/vehicles/{id}/advice", s.handleAdvice)
	mux.HandleFunc("GET /api/vehicles/{id}/export.csv", s.handleExportVehicle)

	mux.HandleFunc("GET /api/vehicles/{id}/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/vehicles/{id}/transactions", s.handleRecordTransaction)
	mux.HandleFunc("PATCH /api/transactions/{id}", s.handleEditTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/analysis", s.handleAnalysis)
	mux.HandleFunc("GET /api/export/summary.csv", s.handleExportSummary)

	gate := security.NewPasswordGate(opts.PasswordHash, logger, "/healthz", "/readyz")
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
	})

	var h http.Handler = mux
	h = limit(h)
	h = gate.Middleware(h)
	h = headers.Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops background work and drains connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	s.logger.Info("HTTP server shutting down",
		applog.FieldOperation, applog.OpShutdown,
		"requests", s.tracer.GetMetrics(),
		"suspicious", s.detector.SuspiciousCount(),
		"rate_limited", s.limiter.Hits())
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.fleet.Repository().(Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			writeError(w, http.StatusServiceUnavailable, "backend unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// advisorEnabled reports whether AI endpoints can be served.
func (s *Server) advisorEnabled() bool {
	if s.advisor == nil {
		return false
	}
	if a, ok := s.advisor.(*advisor.Advisor); ok {
		return a.Enabled()
	}
	return true
}

func (s *Server) requireAdvisor(w http.ResponseWriter) bool {
	if !s.advisorEnabled() {
		s.fail(w, nil, advisor.ErrDisabled)
		return false
	}
	return true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidDay),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrCategoryMismatch),
		errors.Is(err, core.ErrImmutableField),
		errors.Is(err, core.ErrMissingVehicle),
		errors.Is(err, core.ErrEmptyPlate),
		errors.Is(err, core.ErrInvalidYear),
		errors.Is(err, core.ErrInvalidOdometer),
		errors.Is(err, core.ErrDuplicateRule),
		errors.Is(err, core.ErrInvalidInterval),
		errors.Is(err, core.ErrUnknownCategory),
		errors.Is(err, core.ErrDescriptionLength),
		errors.Is(err, core.ErrEmptyDescription):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrRuleNotFound), errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrDuplicatePlate), errors.Is(err, services.ErrVehicleExists):
		return http.StatusConflict
	case errors.Is(err, services.ErrDeleteUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, advisor.ErrDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err and writes the mapped status. Internal errors are not
// echoed to the client; the request id is returned instead so the log line
// can be found.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status != http.StatusInternalServerError {
		writeError(w, status, strings.TrimSpace(err.Error()))
		return
	}

	resp := errorResponse{Error: "internal error"}
	if r == nil {
		s.logger.Error("Request failed", applog.FieldError, err)
	} else {
		resp.RequestID = trace.GetRequestID(r.Context())
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, r.Method+" "+r.URL.Path, applog.NewFields())
	}
	writeJSON(w, status, resp)
}
