package http

import (
	"net/http"

	"mealbook/internal/ledger"
	"mealbook/internal/session"
)

func (s *Server) handleAddStudent(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	l, st, err := e.AddStudent()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, studentAddedResponse{
		Student: studentResponse{ID: st.ID, Name: st.Name, Meals: ledger.DayMarks{}},
		Ledger:  newLedgerResponse(l, e.Status()),
	})
}

func (s *Server) handleRemoveStudent(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	id := r.PathValue("id")
	mutation(func(e *session.Editor) (ledger.Ledger, error) {
		return e.RemoveStudent(id)
	})(w, r, e)
}

func (s *Server) handleRenameStudent(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	var req renameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	mutation(func(e *session.Editor) (ledger.Ledger, error) {
		return e.RenameStudent(id, sanitizeInput(req.Name))
	})(w, r, e)
}

func (s *Server) handleClearRoster(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	mutation((*session.Editor).ClearRoster)(w, r, e)
}

// handleToggle flips one cell.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	var req cellRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	meal, err := req.meal()
	if err != nil {
		writeError(w, r, err)
		return
	}
	mutation(func(e *session.Editor) (ledger.Ledger, error) {
		return e.Toggle(req.StudentID, req.Day, meal)
	})(w, r, e)
}

// handleSetMark sets one cell to an explicit value.
func (s *Server) handleSetMark(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	var req cellRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Value == nil {
		writeError(w, r, &requestError{msg: "validation failed", fields: map[string]string{"value": "is required"}})
		return
	}
	meal, err := req.meal()
	if err != nil {
		writeError(w, r, err)
		return
	}
	mutation(func(e *session.Editor) (ledger.Ledger, error) {
		return e.SetMark(req.StudentID, req.Day, meal, *req.Value)
	})(w, r, e)
}

func (s *Server) handleCopyRow(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	if err := e.CopyRow(r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e.Status())
}

func (s *Server) handlePasteRow(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	id := r.PathValue("id")
	mutation(func(e *session.Editor) (ledger.Ledger, error) {
		return e.PasteRow(id)
	})(w, r, e)
}

func (s *Server) handlePasteRowToAll(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	mutation((*session.Editor).PasteRowToAll)(w, r, e)
}

// handleColumn runs copy, paste, fill or clear on one day/meal column.
func (s *Server) handleColumn(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	action := r.PathValue("action")

	var req columnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	meal, err := req.meal()
	if err != nil {
		writeError(w, r, err)
		return
	}

	switch action {
	case "copy":
		if err := e.CopyColumn(req.Day, meal); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e.Status())
	case "paste":
		mutation(func(e *session.Editor) (ledger.Ledger, error) {
			return e.PasteColumn(req.Day, meal)
		})(w, r, e)
	case "fill":
		mutation(func(e *session.Editor) (ledger.Ledger, error) {
			return e.FillColumn(req.Day, meal)
		})(w, r, e)
	case "clear":
		mutation(func(e *session.Editor) (ledger.Ledger, error) {
			return e.ClearColumn(req.Day, meal)
		})(w, r, e)
	default:
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown column action " + action, RequestID: requestID(r)})
	}
}

func (s *Server) handleClearDay(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	day, err := pathInt(r, "day")
	if err != nil {
		writeError(w, r, err)
		return
	}
	mutation(func(e *session.Editor) (ledger.Ledger, error) {
		return e.ClearDay(day)
	})(w, r, e)
}

func (s *Server) handleClearMonth(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	mutation((*session.Editor).ClearMonth)(w, r, e)
}

func (s *Server) handleAutoFill(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	mutation((*session.Editor).AutoFillMonth)(w, r, e)
}
