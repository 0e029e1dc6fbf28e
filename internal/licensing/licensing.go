// Package licensing ties license construction, embedding, and record keeping
// together for the HTTP API, the watch folder, and the CLI.
package licensing

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"artiquity/internal/config"
	"artiquity/internal/embedder"
	"artiquity/internal/logging"
	"artiquity/internal/media"
	"artiquity/internal/rsl"
	"artiquity/internal/store"
)

// Request carries caller-supplied license terms. Empty fields fall back to
// the configured licensing defaults.
type Request struct {
	Licensor    string   `json:"licensor,omitempty"`
	ServerURL   string   `json:"server_url,omitempty"`
	StandardURL string   `json:"standard_url,omitempty"`
	Permits     []string `json:"permits,omitempty"`
	Prohibits   []string `json:"prohibits,omitempty"`
	PayType     string   `json:"payment_type,omitempty"`
	PayAmount   string   `json:"payment_amount,omitempty"`
	PayCurrency string   `json:"payment_currency,omitempty"`
	Copyright   string   `json:"copyright,omitempty"`
}

// Outcome describes one completed embed, in memory or on disk.
type Outcome struct {
	License rsl.License
	Record  *store.LicenseRecord
	Format  media.Format
	Data    []byte // embedded bytes, nil for file embeds
	Sidecar bool
	Path    string // file or sidecar path, empty for in-memory embeds
}

// Service builds licenses from configured defaults and embeds them.
type Service struct {
	defaults config.Licensing
	embedder *embedder.Embedder
	store    *store.Store
	logger   *slog.Logger
}

// NewService constructs a licensing service. The store may be nil when record
// keeping is not wanted.
func NewService(cfg *config.Config, st *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	} else {
		logger = logging.WithComponent(logger, "licensing")
	}
	return &Service{
		defaults: cfg.Licensing,
		embedder: embedder.New(
			embedder.WithSidecarFallback(cfg.Licensing.SidecarFallback),
			embedder.WithLogger(logger),
		),
		store:  st,
		logger: logger,
	}
}

// Build constructs a license from the request, filling blanks from the
// configured defaults.
func (s *Service) Build(req Request) (rsl.License, error) {
	licensor := strings.TrimSpace(req.Licensor)
	if licensor == "" {
		licensor = s.defaults.Licensor
	}
	lic := rsl.New(licensor)
	if v := strings.TrimSpace(req.ServerURL); v != "" {
		lic.ServerURL = v
	} else if s.defaults.ServerURL != "" {
		lic.ServerURL = s.defaults.ServerURL
	}
	if v := strings.TrimSpace(req.StandardURL); v != "" {
		lic.StandardURL = v
	} else if s.defaults.StandardURL != "" {
		lic.StandardURL = s.defaults.StandardURL
	}
	lic.Copyright = strings.TrimSpace(req.Copyright)

	permits := req.Permits
	if len(permits) == 0 {
		permits = s.defaults.Permits
	}
	prohibits := req.Prohibits
	if len(prohibits) == 0 {
		prohibits = s.defaults.Prohibits
	}
	var err error
	if lic.Permits, err = parseClasses(permits); err != nil {
		return rsl.License{}, fmt.Errorf("licensing: permits: %w", err)
	}
	if lic.Prohibits, err = parseClasses(prohibits); err != nil {
		return rsl.License{}, fmt.Errorf("licensing: prohibits: %w", err)
	}

	if req.PayType != "" {
		lic.Payment = &rsl.Payment{
			Type:     strings.TrimSpace(req.PayType),
			Amount:   strings.TrimSpace(req.PayAmount),
			Currency: strings.TrimSpace(req.PayCurrency),
		}
	}
	if err := lic.Validate(); err != nil {
		return rsl.License{}, err
	}
	return lic, nil
}

// EmbedBytes embeds the license into in-memory file content. Unsupported or
// malformed containers produce a sidecar payload when fallback is enabled.
func (s *Service) EmbedBytes(ctx context.Context, name string, data []byte, lic rsl.License) (Outcome, error) {
	digest, err := lic.Digest()
	if err != nil {
		return Outcome{}, err
	}

	embedded, format, embedErr := s.embedder.Embed(data, name, lic)
	out := Outcome{License: lic, Format: format}
	switch {
	case embedErr == nil:
		out.Data = embedded
	case s.defaults.SidecarFallback:
		xml, xmlErr := lic.EncodeXML()
		if xmlErr != nil {
			return Outcome{}, xmlErr
		}
		out.Data = xml
		out.Sidecar = true
		out.Path = embedder.SidecarPath(name)
		s.logger.Warn("embed failed, producing sidecar payload",
			logging.String("file", name),
			logging.Error(embedErr))
	default:
		return Outcome{}, embedErr
	}

	out.Record = s.record(ctx, lic, name, format, digest, out.Sidecar)
	return out, nil
}

// EmbedFile embeds the license into the file at path, rewriting it in place.
func (s *Service) EmbedFile(ctx context.Context, path string, lic rsl.License) (Outcome, error) {
	result, err := s.embedder.EmbedFile(path, lic)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{
		License: lic,
		Format:  result.Format,
		Sidecar: result.Sidecar,
		Path:    result.Path,
	}
	out.Record = s.record(ctx, lic, filepath.Base(path), result.Format, result.Digest, result.Sidecar)
	return out, nil
}

// VerifyBytes extracts a license from file content and checks its digest.
func (s *Service) VerifyBytes(data []byte, name string) (*rsl.License, string, error) {
	lic, err := s.embedder.Extract(data, name)
	if err != nil {
		return nil, "", err
	}
	digest, err := lic.Digest()
	if err != nil {
		return nil, "", err
	}
	return lic, digest, nil
}

// ExtractFile reads an embedded license from disk, falling back to the
// sidecar when the container has none.
func (s *Service) ExtractFile(path string) (*rsl.License, error) {
	return s.embedder.ExtractFile(path)
}

func (s *Service) record(ctx context.Context, lic rsl.License, fileName string, format media.Format, digest string, sidecar bool) *store.LicenseRecord {
	payload, err := lic.EncodeJSON()
	if err != nil {
		s.logger.Warn("encode license payload for record", logging.Error(err))
		return nil
	}
	rec := &store.LicenseRecord{
		ID:          lic.ID,
		FileName:    fileName,
		Format:      string(format),
		Digest:      digest,
		PayloadJSON: string(payload),
		Sidecar:     sidecar,
		EmbeddedAt:  time.Now().UTC(),
	}
	if s.store == nil {
		return rec
	}
	if err := s.store.RecordLicense(ctx, rec); err != nil {
		s.logger.Warn("record license embed", logging.Error(err))
	}
	return rec
}

func parseClasses(values []string) ([]rsl.UsageClass, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]rsl.UsageClass, 0, len(values))
	for _, value := range values {
		class, err := rsl.ParseUsageClass(value)
		if err != nil {
			return nil, err
		}
		out = append(out, class)
	}
	return out, nil
}
