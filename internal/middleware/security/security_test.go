package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetector_ExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct public peer ignores headers", "203.0.113.7:5000", "198.51.100.1", "", "203.0.113.7"},
		{"trusted proxy uses first forwarded", "10.0.0.2:5000", "198.51.100.1, 10.0.0.2", "", "198.51.100.1"},
		{"trusted proxy falls back to real ip", "127.0.0.1:5000", "garbage", "198.51.100.9", "198.51.100.9"},
		{"trusted proxy without headers", "192.168.1.10:80", "", "", "192.168.1.10"},
		{"unparseable remote addr", "pipe", "", "", "pipe"},
	}
	d := NewDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetector_AddTrustedProxy(t *testing.T) {
	d := NewDetector()
	for _, p := range []string{"203.0.113.0/24", "198.51.100.7"} {
		if err := d.AddTrustedProxy(p); err != nil {
			t.Fatalf("AddTrustedProxy(%q): %v", p, err)
		}
	}
	if err := d.AddTrustedProxy("proxy.local"); err == nil {
		t.Error("expected an error for a hostname")
	}

	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"203.0.113.40:443", "192.0.2.10"},
		{"198.51.100.7:443", "192.0.2.10"},
		{"198.51.100.8:443", "198.51.100.8"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tt.remoteAddr
		r.Header.Set("X-Forwarded-For", "192.0.2.10")
		if got := d.ExtractClientIP(r); got != tt.want {
			t.Errorf("ExtractClientIP via %s = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}

func TestDetector_DetectSuspiciousRequest(t *testing.T) {
	tests := []struct {
		method string
		target string
		want   bool
	}{
		{http.MethodGet, "/ledger", false},
		{http.MethodPost, "/marks/toggle", false},
		{http.MethodGet, "/static/../../etc/passwd", true},
		{http.MethodGet, "/.env", true},
		{http.MethodGet, "/ledger?q=%3Cscript%3E", true},
		{"TRACE", "/ledger", true},
	}
	d := NewDetector()
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, tt.target, nil)
		if got := d.DetectSuspiciousRequest(r); got != tt.want {
			t.Errorf("DetectSuspiciousRequest(%s %s) = %v, want %v", tt.method, tt.target, got, tt.want)
		}
	}
	if got := d.GetMetrics().SuspiciousRequests; got != 4 {
		t.Errorf("SuspiciousRequests = %d, want 4", got)
	}
}

func TestDetector_MiddlewareBlocksUnusualMethods(t *testing.T) {
	d := NewDetector()
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("TRACE", "/ledger", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("TRACE status = %d, want 405", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.git/config", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("suspicious GET status = %d, want pass-through 200", rec.Code)
	}
	if d.GetMetrics().BlockedRequests != 1 {
		t.Errorf("BlockedRequests = %d, want 1", d.GetMetrics().BlockedRequests)
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ledger", nil))
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS set on plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/ledger", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("Strict-Transport-Security = %q", got)
	}
}
