package http

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"mealbook/internal/export/xlsx"
	"mealbook/internal/ledger"
	"mealbook/internal/log"
	"mealbook/internal/session"
)

// exportKey identifies one rendering of an editor state. UpdatedAt keeps
// keys distinct across sessions, whose revisions restart.
func exportKey(l ledger.Ledger, revision uint64) string {
	return fmt.Sprintf("%s/%04d/%02d/%d/%d", l.OwnerID, l.Year, l.Month, l.UpdatedAt.UnixNano(), revision)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	l, err := e.Ledger()
	if err != nil {
		writeError(w, r, err)
		return
	}
	st := e.Status()
	key := exportKey(l, st.Revision)
	logger := log.FromContext(r.Context())

	data, hit := s.exportCache.Get(key)
	if !hit {
		data, err = xlsx.Render(l, s.exportOpts)
		if err != nil {
			writeError(w, r, fmt.Errorf("render export: %w", err))
			return
		}
		s.exportCache.Set(key, data)
	}

	logger.DebugContext(r.Context(), "Export served",
		log.NewFields().
			WithLedger(l.OwnerID, l.Month, l.Year).
			WithOperation(log.OpExport).
			ToSlice()...,
	)

	w.Header().Set("Content-Type", xlsx.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": xlsx.Filename(l)}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
