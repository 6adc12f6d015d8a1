package http

import (
	"errors"
	"net/http"

	"mealbook/internal/ledger"
	"mealbook/internal/log"
	"mealbook/internal/session"
)

// respondLedger writes the editor's current ledger with its status.
func respondLedger(w http.ResponseWriter, r *http.Request, e *session.Editor, status int) {
	l, err := e.Ledger()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, newLedgerResponse(l, e.Status()))
}

// mutation adapts an editor operation that needs no request body.
func mutation(op func(e *session.Editor) (ledger.Ledger, error)) ownerHandler {
	return func(w http.ResponseWriter, r *http.Request, e *session.Editor) {
		l, err := op(e)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newLedgerResponse(l, e.Status()))
	}
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	var req openRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := e.Open(r.Context(), *req.Month, req.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.exportCache.DeletePrefix(e.Owner() + "/")

	log.FromContext(r.Context()).InfoContext(r.Context(), "Ledger opened",
		log.NewFields().
			WithLedger(e.Owner(), *req.Month, req.Year).
			WithOperation(log.OpOpen).
			ToSlice()...)

	writeJSON(w, http.StatusOK, openResponse{
		Ledger:  newLedgerResponse(res.Ledger, e.Status()),
		Seeded:  res.Seeded,
		Created: res.Created,
	})
}

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	respondLedger(w, r, e, http.StatusOK)
}

func (s *Server) handleUpdateDetails(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	var req detailsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	mutation(func(e *session.Editor) (ledger.Ledger, error) {
		return e.UpdateDetails(req.toDetails())
	})(w, r, e)
}

func (s *Server) handleSetQuota(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	var req quotaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	mutation(func(e *session.Editor) (ledger.Ledger, error) {
		return e.SetQuota(ledger.Quota{S: req.S, T1: req.T1, T2: req.T2})
	})(w, r, e)
}

func (s *Server) handleSetSignature(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	var req signatureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Day > ledger.DaysInMonth(req.Month-1, req.Year) {
		writeError(w, r, &requestError{msg: "signature day is past the end of its month"})
		return
	}
	mutation(func(e *session.Editor) (ledger.Ledger, error) {
		return e.SetSignatureDate(ledger.SignatureDate{Day: req.Day, Month: req.Month, Year: req.Year})
	})(w, r, e)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	res, err := e.Sync(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := e.Ledger()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Result: res, Ledger: newLedgerResponse(l, e.Status())})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	if err := e.Save(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	respondLedger(w, r, e, http.StatusOK)
}

// handleLogout flushes and drops the owner's session. A failed flush keeps
// the session and answers 503 so the client can retry.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	if err := s.registry.Logout(r.Context(), e.Owner()); err != nil {
		if !errors.Is(err, session.ErrStorageFailure) {
			err = errors.Join(session.ErrStorageFailure, err)
		}
		writeError(w, r, err)
		return
	}
	s.exportCache.DeletePrefix(e.Owner() + "/")
	w.WriteHeader(http.StatusNoContent)
}
