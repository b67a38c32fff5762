package expense

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// corsError writes an error response with CORS headers set.
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeJSONError encodes an error payload with the given status.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	setCORSHeaders(w)
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps workflow errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrRecordNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// handleIndex serves the HTML interface.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleList returns the collection in store order plus its aggregate.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records := s.workflow.Records()

	// The image payload is display-only and fetched separately.
	summaries := make([]Record, len(records))
	copy(summaries, records)
	for i := range summaries {
		summaries[i].ImageData = nil
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records":     summaries,
		"total_cents": SumCents(records),
		"total":       FormatCents(SumCents(records)),
	})
}

// handleCapture accepts a captured image, starts a draft and runs the
// extraction call. Success or failure, the response is the draft ready
// for review; an extraction failure shows up as its advisory message.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	// 50MB cap to handle high-resolution phone photos.
	maxFormSize := int64(50 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeJSONError(w, http.StatusBadRequest, errorMsg)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if err.Error() == "http: no such file" {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		writeJSONError(w, http.StatusBadRequest, errorMsg)
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		writeJSONError(w, http.StatusBadRequest, "File is too large. Maximum size is 50MB. Please compress or resize your image.")
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSONError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := contentTypeFor(header.Header.Get("Content-Type"), header.Filename)

	draft, err := s.workflow.Capture(data, contentType)
	if err != nil {
		slog.Error("Error capturing receipt", "filename", header.Filename, "error", err)
		writeJSONError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, draftView(draft))
}

// contentTypeFor resolves the declared content type, falling back to
// the filename extension. The declared type is forwarded as-is.
func contentTypeFor(declared, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if contentType != "" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// draftView strips the raw image payload out of a draft response; the
// UI previews the image it already holds.
func draftView(d Draft) Draft {
	d.ImageData = nil
	return d
}

// handleGetDraft returns the draft under review.
func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := s.workflow.Draft()
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, draftView(draft))
}

// handleSave promotes the reviewed draft into the collection.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var edits Edits
	if err := json.NewDecoder(r.Body).Decode(&edits); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rec, err := s.workflow.Save(edits)
	if err != nil {
		slog.Error("Error saving record", "error", err)
		writeJSONError(w, statusFor(err), err.Error())
		return
	}

	rec.ImageData = nil
	writeJSON(w, http.StatusCreated, rec)
}

// handleCancel discards the draft.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.workflow.Cancel(); err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSelect opens the details view for a record.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.workflow.Select(id)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	rec.ImageData = nil
	writeJSON(w, http.StatusOK, rec)
}

// handleGetImage serves a record's stored image payload for display.
func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, rec := range s.workflow.Records() {
		if rec.ID == id {
			if len(rec.ImageData) == 0 {
				corsError(w, "No image for record", http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", rec.ContentType)
			w.Write(rec.ImageData)
			return
		}
	}
	corsError(w, "Record not found", http.StatusNotFound)
}

// handleEdit re-enters edit mode on the selected record.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	draft, err := s.workflow.Edit()
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	if draft.ID != id {
		writeJSONError(w, http.StatusConflict, "Record is not selected")
		return
	}
	writeJSON(w, http.StatusOK, draftView(draft))
}

// handleDone leaves the details view.
func (s *Server) handleDone(w http.ResponseWriter, r *http.Request) {
	if err := s.workflow.Done(); err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// paramConfirmer answers the deletion prompt from the request's
// confirmed query parameter; the blocking yes/no dialog lives in the UI.
type paramConfirmer bool

func (c paramConfirmer) Confirm(prompt string) bool {
	return bool(c)
}

// handleDelete removes a record, gated on explicit confirmation.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	confirmed := r.URL.Query().Get("confirmed") == "true"

	deleted, err := s.workflow.Delete(id, paramConfirmer(confirmed))
	if err != nil {
		slog.Error("Error deleting record", "id", id, "error", err)
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	if !deleted {
		// Declined confirmation: aborted transition, nothing changed.
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": false})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExportCSV triggers a file download of the tabular export.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	csv, err := CSV(s.workflow.Records())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	filename := ExportFilename(time.Now())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write([]byte(csv))
}

// handleExportMailto returns the mail-compose URI for the export.
func (s *Server) handleExportMailto(w http.ResponseWriter, r *http.Request) {
	uri, err := MailtoURI(s.workflow.Records(), time.Now())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"uri": uri})
}

// handleStaticCSS serves the CSS file.
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file.
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}
