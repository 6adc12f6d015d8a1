package http

import (
	"errors"
	"fmt"
	"net/http"

	"mealbook/internal/importer"
	"mealbook/internal/ledger"
	"mealbook/internal/log"
	"mealbook/internal/session"
)

// handleImportPreview extracts names from an uploaded workbook without
// touching the roster.
func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, &requestError{msg: fmt.Sprintf("invalid upload: %v", err)})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, &requestError{msg: "missing file field"})
		return
	}
	defer file.Close()

	logger := log.FromContext(r.Context())
	res, err := importer.Import(file)
	if err != nil {
		logger.InfoContext(r.Context(), "Import preview rejected",
			log.FieldOperation, log.OpImport,
			"filename", header.Filename,
			log.FieldError, err)
		if errors.Is(err, importer.ErrAmbiguous) {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody{
				Error:     err.Error(),
				Rejected:  res.Rejected,
				RequestID: requestID(r),
			})
			return
		}
		writeError(w, r, &requestError{msg: err.Error()})
		return
	}

	logger.InfoContext(r.Context(), "Import preview",
		log.FieldOperation, log.OpImport,
		"filename", header.Filename,
		log.FieldCount, len(res.Names),
		"rejected", len(res.Rejected))
	writeJSON(w, http.StatusOK, res)
}

// handleImportApply replaces the roster with previewed names. Names are
// validated again since the client may have edited the list.
func (s *Server) handleImportApply(w http.ResponseWriter, r *http.Request, e *session.Editor) {
	var req applyImportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	names := make([]string, 0, len(req.Names))
	var rejected []importer.Rejection
	for i, raw := range req.Names {
		name := importer.Clean(raw)
		if reason := importer.Validate(name); reason != "" {
			rejected = append(rejected, importer.Rejection{Row: i, Value: name, Reason: reason})
			continue
		}
		names = append(names, name)
	}
	if len(rejected) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error:     "some names are not valid",
			Rejected:  rejected,
			RequestID: requestID(r),
		})
		return
	}

	mutation(func(e *session.Editor) (ledger.Ledger, error) {
		return e.ReplaceRoster(names)
	})(w, r, e)
}
