package httpapi

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/katibim/internal/auth"
	"github.com/ent0n29/katibim/internal/documents"
	"github.com/ent0n29/katibim/internal/export"
	"github.com/ent0n29/katibim/internal/redact"
)

type createDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type updateDocumentRequest struct {
	Content *string `json:"content"`
}

type listDocumentsResponse struct {
	Documents []documents.Record `json:"documents"`
	Total     int                `json:"total"`
}

// storeContext forwards the caller's token to row-level-security backends.
func storeContext(r *http.Request) context.Context {
	ctx := r.Context()
	if sess, ok := auth.FromContext(ctx); ok {
		ctx = documents.WithAccessToken(ctx, sess.AccessToken)
	}
	return ctx
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(storeContext(r))
	if err != nil {
		s.storeFailure(w, "list", err)
		return
	}
	total := len(records)
	records = documents.FilterByTitle(documents.SortNewestFirst(records), r.URL.Query().Get("q"))
	respondJSON(w, http.StatusOK, listDocumentsResponse{Documents: records, Total: total})
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "title and content are required")
		return
	}
	title, content, err := documents.NewRecord(req.Title, req.Content)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_record", err.Error())
		return
	}
	rec, err := s.store.Insert(storeContext(r), title, content)
	if err != nil {
		s.storeFailure(w, "insert", err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	var req updateDocumentRequest
	if err := decodeJSON(r, &req); err != nil || req.Content == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "content is required")
		return
	}
	rec, err := s.store.Update(storeContext(r), id, *req.Content)
	if err != nil {
		s.storeFailure(w, "update", err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(storeContext(r), id); err != nil {
		s.storeFailure(w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDocumentPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	records, err := s.store.List(storeContext(r))
	if err != nil {
		s.storeFailure(w, "list", err)
		return
	}
	var rec *documents.Record
	for i := range records {
		if records[i].ID == id {
			rec = &records[i]
			break
		}
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, "not_found", documents.ErrNotFound.Error())
		return
	}

	var buf bytes.Buffer
	if err := export.WritePDF(&buf, rec.Title, rec.Content, s.exportOpt); err != nil {
		s.logger.Error("pdf export failed", slog.Int64("id", id), slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "export_failed", "could not render document")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(rec.Title)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func documentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_id", "document id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (s *Server) storeFailure(w http.ResponseWriter, op string, err error) {
	var storeErr *documents.StoreError
	switch {
	case errors.Is(err, documents.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, documents.ErrInvalidRecord):
		respondError(w, http.StatusBadRequest, "invalid_record", err.Error())
	case errors.As(err, &storeErr) && (storeErr.Status == http.StatusUnauthorized || storeErr.Status == http.StatusForbidden):
		respondError(w, http.StatusForbidden, "forbidden", storeErr.Message)
	default:
		s.logger.Error("document store call failed",
			slog.String("op", op),
			slog.String("error", redact.Text(err.Error())),
		)
		respondError(w, http.StatusBadGateway, "store_unavailable", "document store call failed")
	}
}
