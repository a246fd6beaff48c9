package web

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/vbonduro/placemate/internal/photostore"
	"github.com/vbonduro/placemate/internal/service"
)

const maxPhotoSize = 50 * 1024 * 1024 // 50 MB

// allowedImageTypes is the set of MIME types accepted for uploaded photos.
// net/http.DetectContentType handles JPEG, PNG, and GIF via magic-byte
// sniffing. WebP is detected separately because the WHATWG sniffing standard (and
// therefore the stdlib) does not include a WebP signature.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

// readImage parses the multipart form and returns the "image" field and its
// sniffed MIME type. It writes the error response itself.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize)
	if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
		badRequest(w, "failed to parse form")
		return nil, "", false
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		badRequest(w, "image file required")
		return nil, "", false
	}
	defer closeWithLog(file, "upload file", s.logger)

	imageData, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read file"})
		s.logger.Error("read upload failed", "error", err)
		return nil, "", false
	}

	mimeType, ok := allowedImageMIME(imageData)
	if !ok {
		badRequest(w, "unsupported image format")
		return nil, "", false
	}
	return imageData, mimeType, true
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	imageData, mimeType, ok := s.readImage(w, r)
	if !ok {
		return
	}

	// A scan is one transaction; let it finish even if the client goes away.
	report, err := s.scans.Scan(context.WithoutCancel(r.Context()), service.ScanRequest{
		Image:    imageData,
		MimeType: mimeType,
		Hint:     r.FormValue("hint"),
		Room:     r.FormValue("room"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if report.Empty {
		status = http.StatusOK
	}
	writeJSON(w, status, report)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	// Fail fast before uploading to the model.
	if _, err := s.inventory.GetLocation(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}

	imageData, mimeType, ok := s.readImage(w, r)
	if !ok {
		return
	}

	report, err := s.scans.Audit(r.Context(), id, imageData, mimeType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	reader, mimeType, err := s.photoStore.Get(r.Context(), key)
	if errors.Is(err, photostore.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "photo not found"})
		return
	}
	if err != nil {
		badRequest(w, "invalid photo key")
		return
	}
	defer closeWithLog(reader, "photo reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write photo failed", "key", key, "error", err)
	}
}
