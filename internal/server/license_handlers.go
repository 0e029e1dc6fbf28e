package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"artiquity/internal/api"
	"artiquity/internal/embedder"
	"artiquity/internal/licensing"
	"artiquity/internal/logging"
	"artiquity/internal/rsl"
)

// maxUploadBytes bounds license embed and verify uploads.
const maxUploadBytes = 256 << 20

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	data, name, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	var req licensing.Request
	if raw := strings.TrimSpace(r.FormValue("license")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid license terms: %v", err))
			return
		}
	}

	lic, err := s.services.Licensing.Build(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := s.services.Licensing.EmbedBytes(r.Context(), name, data, lic)
	if err != nil {
		if errors.Is(err, embedder.ErrUnsupportedFormat) {
			s.writeError(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.services.Notifier.NotifyLicenseEmbedded(r.Context(), name, outcome.Sidecar); err != nil {
		s.logger.Warn("license notification failed", logging.Error(err))
	}

	filename := name
	contentType := outcome.Format.MIME()
	if outcome.Sidecar {
		filename = embedder.SidecarPath(name)
		contentType = "application/xml"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(filename)))
	w.Header().Set("X-License-Id", outcome.License.ID)
	w.Header().Set("X-License-Sidecar", strconv.FormatBool(outcome.Sidecar))
	if outcome.Record != nil {
		w.Header().Set("X-License-Digest", outcome.Record.Digest)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(outcome.Data); err != nil {
		s.logger.Warn("write embed response", logging.Error(err))
	}
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	data, name, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	lic, digest, err := s.services.Licensing.VerifyBytes(data, name)
	if err != nil {
		if errors.Is(err, rsl.ErrNoLicense) {
			s.writeJSON(w, http.StatusOK, api.VerifyResponse{Valid: false, Detail: "no embedded license found"})
			return
		}
		if errors.Is(err, embedder.ErrUnsupportedFormat) {
			s.writeError(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.VerifyResponse{Valid: false, Detail: err.Error()})
		return
	}

	payload, err := lic.EncodeJSON()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.VerifyResponse{
		Valid:   true,
		Digest:  digest,
		License: json.RawMessage(payload),
	})
}

func (s *Server) handleLicenses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	records, err := s.store.ListLicenses(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.LicenseListResponse{Licenses: api.FromLicenses(records)})
}

// readUpload pulls the "file" part out of a multipart request.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart request: %v", err))
		return nil, "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file part is required")
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
		return nil, "", false
	}
	name := filepath.Base(strings.TrimSpace(header.Filename))
	if name == "" || name == "." {
		name = "upload"
	}
	return data, name, true
}
