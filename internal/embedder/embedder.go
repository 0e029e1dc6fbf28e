package embedder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"artiquity/internal/fileutil"
	"artiquity/internal/logging"
	"artiquity/internal/media"
	"artiquity/internal/rsl"
)

var (
	// ErrUnsupportedFormat indicates the container has no RSL extension point.
	ErrUnsupportedFormat = errors.New("embedder: unsupported format")
	// ErrDigestMismatch indicates an extracted license does not match the expected payload.
	ErrDigestMismatch = errors.New("embedder: license digest mismatch")
)

// Result describes a completed embed operation.
type Result struct {
	Format  media.Format
	Path    string
	Sidecar bool
	Digest  string
	Size    int64
}

// Embedder writes RSL licenses into media containers.
type Embedder struct {
	sidecarFallback bool
	logger          *slog.Logger
}

// Option customizes the embedder.
type Option func(*Embedder)

// WithSidecarFallback controls whether unsupported or malformed files get a
// sidecar license file instead of an error.
func WithSidecarFallback(enabled bool) Option {
	return func(e *Embedder) {
		e.sidecarFallback = enabled
	}
}

// WithLogger attaches a logger to the embedder.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Embedder) {
		if logger != nil {
			e.logger = logging.WithComponent(logger, "embedder")
		}
	}
}

// New constructs an embedder.
func New(opts ...Option) *Embedder {
	e := &Embedder{
		sidecarFallback: true,
		logger:          logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed returns a copy of data with the license embedded. The name hint is
// only consulted when magic-byte detection fails. Embedding is idempotent:
// an existing RSL payload is replaced, not stacked.
func (e *Embedder) Embed(data []byte, name string, lic rsl.License) ([]byte, media.Format, error) {
	if err := lic.Validate(); err != nil {
		return nil, media.FormatUnknown, err
	}
	format := media.DetectWithName(data, name)
	out, err := embedForFormat(data, format, lic)
	if err != nil {
		return nil, format, err
	}
	return out, format, nil
}

// Extract reads an embedded license back out of data.
func (e *Embedder) Extract(data []byte, name string) (*rsl.License, error) {
	format := media.DetectWithName(data, name)
	switch format {
	case media.FormatJPEG:
		return extractJPEG(data)
	case media.FormatPNG:
		return extractPNG(data)
	case media.FormatMP3:
		return extractMP3(data)
	case media.FormatPDF:
		return extractPDF(data)
	}
	return nil, ErrUnsupportedFormat
}

// Verify extracts the license from data and compares it against the expected
// license's canonical digest.
func (e *Embedder) Verify(data []byte, name string, expected rsl.License) error {
	found, err := e.Extract(data, name)
	if err != nil {
		return err
	}
	wantDigest, err := expected.Digest()
	if err != nil {
		return err
	}
	gotDigest, err := found.Digest()
	if err != nil {
		return err
	}
	if wantDigest != gotDigest {
		return fmt.Errorf("%w: want %s, got %s", ErrDigestMismatch, wantDigest, gotDigest)
	}
	return nil
}

// EmbedFile embeds the license into the file at path, rewriting it in place
// atomically. Unsupported formats and malformed containers fall back to a
// sidecar file when enabled.
func (e *Embedder) EmbedFile(path string, lic rsl.License) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", path, err)
	}

	digest, err := lic.Digest()
	if err != nil {
		return Result{}, err
	}

	out, format, err := e.Embed(data, path, lic)
	if err != nil {
		if !e.sidecarFallback {
			return Result{}, err
		}
		sidecarPath, sideErr := WriteSidecar(path, lic)
		if sideErr != nil {
			return Result{}, errors.Join(err, sideErr)
		}
		e.logger.Warn("embed failed, wrote sidecar",
			logging.String("file", path),
			logging.String("sidecar", sidecarPath),
			logging.Error(err))
		return Result{Format: format, Path: sidecarPath, Sidecar: true, Digest: digest, Size: int64(len(data))}, nil
	}

	if err := fileutil.WriteFileAtomic(path, out, 0o644); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", path, err)
	}
	e.logger.Info("license embedded",
		logging.String("file", path),
		logging.String("format", string(format)),
		logging.String("license_id", lic.ID))
	return Result{Format: format, Path: path, Digest: digest, Size: int64(len(out))}, nil
}

// ExtractFile reads an embedded license from the file at path, consulting the
// sidecar when the container itself has none.
func (e *Embedder) ExtractFile(path string) (*rsl.License, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	lic, err := e.Extract(data, path)
	if err == nil {
		return lic, nil
	}
	if sidecar, sideErr := ReadSidecar(path); sideErr == nil {
		return sidecar, nil
	}
	return nil, err
}

func embedForFormat(data []byte, format media.Format, lic rsl.License) ([]byte, error) {
	switch format {
	case media.FormatJPEG:
		return embedJPEG(data, lic)
	case media.FormatPNG:
		return embedPNG(data, lic)
	case media.FormatMP3:
		return embedMP3(data, lic)
	case media.FormatPDF:
		return embedPDF(data, lic)
	}
	return nil, ErrUnsupportedFormat
}
