package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/riddler/internal/vision"
)

const maxImageBytes = 10 << 20

// Labeler turns image bytes into scored labels.
type Labeler interface {
	Labels(ctx context.Context, image []byte) ([]vision.Label, error)
}

// handleLabels accepts a multipart upload in the "image" field.
func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	if s.opts.Labeler == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "labels_disabled"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+1<<20)
	file, _, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing_image"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read_failed"})
		return
	}
	labels, err := s.opts.Labeler.Labels(r.Context(), data)
	if errors.Is(err, vision.ErrEmptyImage) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty_image"})
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("label image")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "labels_failed"})
		return
	}
	writeJSON(w, http.StatusOK, labels)
}
