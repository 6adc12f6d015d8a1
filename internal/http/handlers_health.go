package http

import (
	"context"
	"net/http"
	"time"

	"mealbook/internal/cache"
	"mealbook/internal/middleware/ratelimit"
	"mealbook/internal/middleware/security"
	"mealbook/internal/middleware/trace"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports not_ready when the store does not answer a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status, code := "ready", http.StatusOK
	checks := map[string]string{"storage": "ok"}

	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			checks["storage"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	} else {
		checks["storage"] = "not_checked"
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

type metricsResponse struct {
	Sessions    int                       `json:"sessions"`
	ExportCache cache.Stats               `json:"exportCache"`
	Requests    trace.Metrics             `json:"requests"`
	RateLimit   ratelimit.Metrics         `json:"rateLimit"`
	Security    security.DetectionMetrics `json:"security"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metricsResponse{
		Sessions:    s.registry.Len(),
		ExportCache: s.exportCache.Stats(),
		Requests:    s.tracer.GetMetrics(),
		RateLimit:   s.limiter.GetMetrics(),
		Security:    s.detector.GetMetrics(),
	})
}
