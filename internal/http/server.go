// Package http exposes the meal ledger editor as a JSON API.
package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"mealbook/internal/cache"
	"mealbook/internal/export"
	"mealbook/internal/log"
	"mealbook/internal/middleware/ratelimit"
	"mealbook/internal/middleware/security"
	"mealbook/internal/middleware/trace"
	"mealbook/internal/services"
	"mealbook/internal/session"
)

// OwnerHeader carries the authenticated owner id, set by the auth proxy.
const OwnerHeader = "X-Owner-ID"

const (
	maxOwnerIDLength = 128
	maxUploadBytes   = 10 << 20
)

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires a Server. Registry is required.
type Options struct {
	Registry      *services.SessionRegistry
	Pinger        Pinger
	ExportOptions export.Options
	ExportCache   *cache.LRUCache[[]byte]
	RateLimit     ratelimit.Config

	// TrustedProxies extends the networks whose X-Forwarded-For is used.
	TrustedProxies []string
}

type Server struct {
	http.Server
	registry    *services.SessionRegistry
	pinger      Pinger
	exportOpts  export.Options
	exportCache *cache.LRUCache[[]byte]
	limiter     *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	logger      *log.Logger
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, opts Options) *Server {
	if opts.ExportCache == nil {
		opts.ExportCache = cache.NewLRUCache[[]byte](64, 10*time.Minute)
	}

	s := &Server{
		registry:    opts.Registry,
		pinger:      opts.Pinger,
		exportOpts:  opts.ExportOptions,
		exportCache: opts.ExportCache,
		limiter:     ratelimit.NewLimiter(opts.RateLimit),
		detector:    security.NewDetector(),
		logger:      log.NewLogger(log.ComponentHTTP),
		started:     time.Now(),
	}
	for _, p := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(p); err != nil {
			s.logger.Warn("Ignoring trusted proxy", "proxy", p, log.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	owned := func(pattern string, h ownerHandler) {
		mux.Handle(pattern, s.withOwner(h))
	}

	owned("POST /ledger/open", s.handleOpen)
	owned("GET /ledger", s.handleGetLedger)
	owned("PUT /ledger/details", s.handleUpdateDetails)
	owned("PUT /ledger/quota", s.handleSetQuota)
	owned("PUT /ledger/signature", s.handleSetSignature)
	owned("POST /ledger/sync", s.handleSync)
	owned("POST /ledger/save", s.handleSave)
	owned("POST /logout", s.handleLogout)

	owned("POST /students", s.handleAddStudent)
	owned("DELETE /students/{id}", s.handleRemoveStudent)
	owned("PUT /students/{id}/name", s.handleRenameStudent)
	owned("POST /roster/clear", s.handleClearRoster)

	owned("POST /marks/toggle", s.handleToggle)
	owned("PUT /marks", s.handleSetMark)
	owned("POST /rows/{id}/copy", s.handleCopyRow)
	owned("POST /rows/{id}/paste", s.handlePasteRow)
	owned("POST /rows/paste-all", s.handlePasteRowToAll)
	owned("POST /columns/{action}", s.handleColumn)
	owned("POST /days/{day}/clear", s.handleClearDay)
	owned("POST /month/clear", s.handleClearMonth)
	owned("POST /month/autofill", s.handleAutoFill)

	owned("POST /import/preview", s.handleImportPreview)
	owned("POST /import/apply", s.handleImportApply)
	owned("GET /export.xlsx", s.handleExport)

	var h http.Handler = mux
	h = s.limiter.Middleware(ownerOrIP(s.detector), ratelimit.Mutating, s.onRateLimit)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	return h
}

// ownerHandler is a handler bound to the requesting owner's editor.
type ownerHandler func(w http.ResponseWriter, r *http.Request, e *session.Editor)

func (s *Server) withOwner(h ownerHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerID(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{
				Error:     "missing or invalid " + OwnerHeader + " header",
				RequestID: requestID(r),
			})
			return
		}
		logger := log.FromContext(r.Context()).With(log.FieldOwnerID, owner)
		r = r.WithContext(log.WithContext(r.Context(), logger))
		h(w, r, s.registry.Editor(owner))
	})
}

func ownerID(r *http.Request) (string, bool) {
	owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
	if owner == "" || len(owner) > maxOwnerIDLength {
		return "", false
	}
	if strings.ContainsFunc(owner, func(c rune) bool { return c < 32 || c == '/' }) {
		return "", false
	}
	return owner, true
}

// ownerOrIP buckets authenticated requests per owner and the rest per IP.
func ownerOrIP(d *security.Detector) func(*http.Request) string {
	return func(r *http.Request) string {
		if owner, ok := ownerID(r); ok {
			return "owner:" + owner
		}
		return "ip:" + d.ExtractClientIP(r)
	}
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.NewFields().
			WithClientIP(s.detector.ExtractClientIP(r)).
			WithHTTPRequest(r.Method, r.URL.Path, "", "").
			ToSlice()...)
	writeJSON(w, http.StatusTooManyRequests, errorBody{
		Error:     "rate limit exceeded, try again later",
		RequestID: requestID(r),
	})
}

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}

// Shutdown stops accepting requests, then stops the rate limiter. Open
// editors are flushed by the registry, not here.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
		s.limiter.Stop()
	})
	return err
}
