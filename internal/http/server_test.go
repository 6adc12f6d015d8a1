package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"mealbook/internal/export/xlsx"
	"mealbook/internal/middleware/ratelimit"
	"mealbook/internal/services"
	"mealbook/internal/session"
	"mealbook/internal/storage"
)

const testOwner = "teacher-1"

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Registry == nil {
		svc := services.NewLedgerService(storage.NewMemoryStore(), nil)
		opts.Registry = services.NewSessionRegistry(svc, session.Config{AutosaveDelay: time.Hour})
	}
	srv := NewServer(":0", opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(OwnerHeader, testOwner)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func openMonth(t *testing.T, srv *Server, month, year int) openResponse {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/ledger/open", map[string]int{"month": month, "year": year})
	if rec.Code != http.StatusOK {
		t.Fatalf("open status = %d body = %s", rec.Code, rec.Body.String())
	}
	return decode[openResponse](t, rec)
}

func TestHealthAndReady(t *testing.T) {
	tests := []struct {
		name   string
		pinger Pinger
		path   string
		want   int
	}{
		{"health", nil, "/healthz", http.StatusOK},
		{"ready without pinger", nil, "/readyz", http.StatusOK},
		{"ready with healthy store", fakePinger{}, "/readyz", http.StatusOK},
		{"ready with failing store", fakePinger{err: errors.New("disk gone")}, "/readyz", http.StatusServiceUnavailable},
		{"metrics", nil, "/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Options{Pinger: tt.pinger})
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Fatalf("%s status = %d, want %d", tt.path, rec.Code, tt.want)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID")
			}
		})
	}
}

func TestOwnerHeaderRequired(t *testing.T) {
	srv := newTestServer(t, Options{})
	for _, owner := range []string{"", "a/b", strings.Repeat("x", 129)} {
		req := httptest.NewRequest(http.MethodGet, "/ledger", nil)
		if owner != "" {
			req.Header.Set(OwnerHeader, owner)
		}
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("owner %q: status = %d, want 401", owner, rec.Code)
		}
	}
}

func TestLedgerNotOpen(t *testing.T) {
	srv := newTestServer(t, Options{})
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/ledger"},
		{http.MethodPost, "/students"},
		{http.MethodPost, "/month/autofill"},
		{http.MethodGet, "/export.xlsx"},
	} {
		rec := do(t, srv, tc.method, tc.path, nil)
		if rec.Code != http.StatusConflict {
			t.Errorf("%s %s status = %d, want 409", tc.method, tc.path, rec.Code)
		}
	}
}

func TestOpenValidation(t *testing.T) {
	srv := newTestServer(t, Options{})
	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"month too large", map[string]int{"month": 12, "year": 2024}, "month"},
		{"month missing", map[string]int{"year": 2024}, "month"},
		{"year too small", map[string]int{"month": 1, "year": 1800}, "year"},
		{"unknown field", map[string]int{"month": 1, "year": 2024, "day": 3}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/ledger/open", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 body=%s", rec.Code, rec.Body.String())
			}
			body := decode[errorBody](t, rec)
			if tt.field != "" {
				if _, ok := body.Fields[tt.field]; !ok {
					t.Errorf("fields = %v, want entry for %s", body.Fields, tt.field)
				}
			}
		})
	}
}

func TestEditFlow(t *testing.T) {
	srv := newTestServer(t, Options{})

	opened := openMonth(t, srv, 3, 2024)
	if !opened.Created || opened.Seeded {
		t.Fatalf("open flags = created %v seeded %v", opened.Created, opened.Seeded)
	}
	if opened.Ledger.DaysInMonth != 30 {
		t.Errorf("DaysInMonth = %d, want 30", opened.Ledger.DaysInMonth)
	}

	rec := do(t, srv, http.MethodPost, "/students", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add student status = %d", rec.Code)
	}
	added := decode[studentAddedResponse](t, rec)
	id := added.Student.ID
	if id == "" {
		t.Fatal("empty student id")
	}

	rec = do(t, srv, http.MethodPut, "/students/"+id+"/name", map[string]string{"name": "  Nguyễn Văn An "})
	if rec.Code != http.StatusOK {
		t.Fatalf("rename status = %d", rec.Code)
	}

	rec = do(t, srv, http.MethodPost, "/marks/toggle", map[string]any{"studentId": id, "day": 1, "meal": "S"})
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d body=%s", rec.Code, rec.Body.String())
	}
	l := decode[ledgerResponse](t, rec)
	if l.Students[0].Name != "Nguyễn Văn An" {
		t.Errorf("name = %q", l.Students[0].Name)
	}
	if !l.Students[0].Meals.Get(1).S {
		t.Error("day 1 breakfast not marked")
	}
	if l.Totals[0].Fulfilled.S != 1 || l.Headcounts[0].S != 1 {
		t.Errorf("totals = %+v headcounts[0] = %+v", l.Totals[0], l.Headcounts[0])
	}
	if l.Status.State != session.Dirty {
		t.Errorf("state = %v, want dirty", l.Status.State)
	}

	rec = do(t, srv, http.MethodPut, "/ledger/quota", map[string]int{"S": 20, "T1": 20, "T2": 0})
	if rec.Code != http.StatusOK {
		t.Fatalf("quota status = %d", rec.Code)
	}
	if got := decode[ledgerResponse](t, rec).Totals[0].Unfulfilled.S; got != 19 {
		t.Errorf("unfulfilled S = %d, want 19", got)
	}

	rec = do(t, srv, http.MethodPost, "/ledger/save", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d", rec.Code)
	}
	if st := decode[ledgerResponse](t, rec).Status.State; st != session.Clean {
		t.Errorf("state after save = %v", st)
	}

	rec = do(t, srv, http.MethodPost, "/logout", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", rec.Code)
	}

	reopened := openMonth(t, srv, 3, 2024)
	if reopened.Created || len(reopened.Ledger.Students) != 1 {
		t.Fatalf("reopen created=%v students=%d", reopened.Created, len(reopened.Ledger.Students))
	}

	next := openMonth(t, srv, 4, 2024)
	if !next.Seeded || len(next.Ledger.Students) != 1 || next.Ledger.Students[0].ID != id {
		t.Fatalf("next month seeded=%v students=%+v", next.Seeded, next.Ledger.Students)
	}
	if len(next.Ledger.Students[0].Meals) != 0 {
		t.Error("seeded student carried marks")
	}
}

func TestEditErrors(t *testing.T) {
	srv := newTestServer(t, Options{})
	openMonth(t, srv, 1, 2024)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown student", http.MethodPost, "/marks/toggle", map[string]any{"studentId": "nope", "day": 1, "meal": "S"}, http.StatusNotFound},
		{"bad meal", http.MethodPost, "/marks/toggle", map[string]any{"studentId": "x", "day": 1, "meal": "X"}, http.StatusBadRequest},
		{"day past month end", http.MethodPost, "/columns/fill", map[string]any{"day": 30, "meal": "T1"}, http.StatusUnprocessableEntity},
		{"paste without copy", http.MethodPost, "/columns/paste", map[string]any{"day": 3, "meal": "T1"}, http.StatusConflict},
		{"unknown column action", http.MethodPost, "/columns/shuffle", map[string]any{"day": 3, "meal": "T1"}, http.StatusNotFound},
		{"paste row without copy", http.MethodPost, "/rows/paste-all", nil, http.StatusConflict},
		{"bad day path", http.MethodPost, "/days/abc/clear", nil, http.StatusBadRequest},
		{"sync without prior", http.MethodPost, "/ledger/sync", nil, http.StatusNotFound},
		{"signature past month end", http.MethodPut, "/ledger/signature", map[string]int{"day": 30, "month": 2, "year": 2024}, http.StatusBadRequest},
		{"set mark without value", http.MethodPut, "/marks", map[string]any{"studentId": "x", "day": 1, "meal": "S"}, http.StatusBadRequest},
		{"wrong method", http.MethodGet, "/ledger/save", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d body=%s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestColumnClipboard(t *testing.T) {
	srv := newTestServer(t, Options{})
	openMonth(t, srv, 3, 2024)
	do(t, srv, http.MethodPost, "/students", nil)
	do(t, srv, http.MethodPost, "/students", nil)

	if rec := do(t, srv, http.MethodPost, "/columns/fill", map[string]any{"day": 2, "meal": "T1"}); rec.Code != http.StatusOK {
		t.Fatalf("fill status = %d", rec.Code)
	}
	rec := do(t, srv, http.MethodPost, "/columns/copy", map[string]any{"day": 2, "meal": "T1"})
	if rec.Code != http.StatusOK || !decode[session.Status](t, rec).HasColumn {
		t.Fatalf("copy status = %d body=%s", rec.Code, rec.Body.String())
	}
	rec = do(t, srv, http.MethodPost, "/columns/paste", map[string]any{"day": 9, "meal": "T2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("paste status = %d", rec.Code)
	}
	l := decode[ledgerResponse](t, rec)
	if l.Headcounts[8].T2 != 2 {
		t.Errorf("day 9 dinner headcount = %d, want 2", l.Headcounts[8].T2)
	}

	rec = do(t, srv, http.MethodPost, "/days/9/clear", nil)
	if got := decode[ledgerResponse](t, rec).Headcounts[8].T2; got != 0 {
		t.Errorf("after clear day headcount = %d", got)
	}
}

func TestExportCaching(t *testing.T) {
	srv := newTestServer(t, Options{})
	openMonth(t, srv, 3, 2024)
	do(t, srv, http.MethodPut, "/ledger/details", map[string]string{"className": "3A", "schoolName": "Tiểu học Kim Đồng"})

	first := do(t, srv, http.MethodGet, "/export.xlsx", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("export status = %d body=%s", first.Code, first.Body.String())
	}
	if ct := first.Header().Get("Content-Type"); ct != xlsx.ContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := first.Header().Get("Content-Disposition"); !strings.Contains(cd, "SoAn_3A_T04_2024.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if first.Header().Get("X-Cache") != "MISS" {
		t.Errorf("first export X-Cache = %q", first.Header().Get("X-Cache"))
	}
	if _, err := excelize.OpenReader(bytes.NewReader(first.Body.Bytes())); err != nil {
		t.Fatalf("export is not a workbook: %v", err)
	}

	second := do(t, srv, http.MethodGet, "/export.xlsx", nil)
	if second.Header().Get("X-Cache") != "HIT" {
		t.Errorf("second export X-Cache = %q", second.Header().Get("X-Cache"))
	}

	do(t, srv, http.MethodPost, "/students", nil)
	third := do(t, srv, http.MethodGet, "/export.xlsx", nil)
	if third.Header().Get("X-Cache") != "MISS" {
		t.Errorf("export after edit X-Cache = %q", third.Header().Get("X-Cache"))
	}
}

func uploadWorkbook(t *testing.T, srv *Server, rows [][]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	f := excelize.NewFile()
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	data, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "lop3a.xlsx")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write(data.Bytes())
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/import/preview", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(OwnerHeader, testOwner)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestImportPreviewAndApply(t *testing.T) {
	srv := newTestServer(t, Options{})
	openMonth(t, srv, 8, 2024)

	rec := uploadWorkbook(t, srv, [][]interface{}{
		{"STT", "Họ và tên"},
		{1, "Nguyễn Văn An"},
		{2, "Trần Thị Bình"},
		{"", "Tổng cộng"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d body=%s", rec.Code, rec.Body.String())
	}
	var preview struct {
		Names    []string `json:"names"`
		Rejected []struct {
			Reason string `json:"reason"`
		} `json:"rejected"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &preview); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if len(preview.Names) != 2 || preview.Names[1] != "Trần Thị Bình" {
		t.Fatalf("names = %v", preview.Names)
	}
	if len(preview.Rejected) != 1 {
		t.Errorf("rejected = %+v, want the totals row", preview.Rejected)
	}

	// Preview leaves the roster alone.
	if got := decode[ledgerResponse](t, do(t, srv, http.MethodGet, "/ledger", nil)); len(got.Students) != 0 {
		t.Fatalf("preview changed roster: %d students", len(got.Students))
	}

	rec = do(t, srv, http.MethodPost, "/import/apply", map[string]any{"names": preview.Names})
	if rec.Code != http.StatusOK {
		t.Fatalf("apply status = %d body=%s", rec.Code, rec.Body.String())
	}
	if got := decode[ledgerResponse](t, rec); len(got.Students) != 2 || got.Students[0].Name != "Nguyễn Văn An" {
		t.Fatalf("students = %+v", got.Students)
	}

	rec = do(t, srv, http.MethodPost, "/import/apply", map[string]any{"names": []string{"Lê Văn Cường", "12"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("apply with bad name status = %d", rec.Code)
	}
}

func TestImportPreviewAmbiguous(t *testing.T) {
	srv := newTestServer(t, Options{})
	openMonth(t, srv, 8, 2024)

	rec := uploadWorkbook(t, srv, [][]interface{}{{1, 2}, {3, 4}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 body=%s", rec.Code, rec.Body.String())
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	srv := newTestServer(t, Options{RateLimit: ratelimit.Config{RequestsPerWindow: 3, Window: time.Minute}})
	openMonth(t, srv, 3, 2024)
	do(t, srv, http.MethodPost, "/students", nil)
	do(t, srv, http.MethodPost, "/students", nil)

	rec := do(t, srv, http.MethodPost, "/students", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if rec := do(t, srv, http.MethodGet, "/ledger", nil); rec.Code != http.StatusOK {
		t.Errorf("GET after limit status = %d", rec.Code)
	}
}

func TestRateLimitPerClientBehindTrustedProxy(t *testing.T) {
	srv := newTestServer(t, Options{
		RateLimit:      ratelimit.Config{RequestsPerWindow: 1, Window: time.Minute},
		TrustedProxies: []string{"203.0.113.5"},
	})
	anonymous := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/students", nil)
		req.RemoteAddr = "203.0.113.5:443"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := anonymous("192.0.2.1"); code != http.StatusUnauthorized {
		t.Fatalf("first request status = %d, want 401", code)
	}
	if code := anonymous("192.0.2.1"); code != http.StatusTooManyRequests {
		t.Fatalf("repeat request status = %d, want 429", code)
	}
	if code := anonymous("192.0.2.2"); code != http.StatusUnauthorized {
		t.Fatalf("second client status = %d, want its own bucket", code)
	}
}
