package licensing

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"artiquity/internal/config"
	"artiquity/internal/media"
	"artiquity/internal/rsl"
	"artiquity/internal/store"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Licensing.Licensor = "Aurora Atelier"
	cfg.Licensing.ServerURL = "https://license.aurora.example"
	cfg.Licensing.Permits = []string{"search"}
	cfg.Licensing.Prohibits = []string{"train-genai"}
	cfg.Licensing.SidecarFallback = true
	return &cfg
}

func newTestService(t *testing.T, cfg *config.Config) (*Service, *store.Store) {
	t.Helper()
	st, err := store.OpenPath(filepath.Join(t.TempDir(), "artiquity.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewService(cfg, st, nil), st
}

// minimalJPEG returns SOI + APP0 + a tiny scan + EOI.
func minimalJPEG() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8})
	buf.Write([]byte{0xFF, 0xE0, 0x00, 0x10})
	buf.Write([]byte("JFIF\x00"))
	buf.Write(bytes.Repeat([]byte{0x00}, 9))
	buf.Write([]byte{0xFF, 0xDA, 0x00, 0x02})
	buf.Write([]byte{0x01, 0x02, 0x03})
	buf.Write([]byte{0xFF, 0xD9})
	return buf.Bytes()
}

func TestBuildAppliesDefaults(t *testing.T) {
	svc, _ := newTestService(t, testConfig())

	lic, err := svc.Build(Request{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if lic.Licensor != "Aurora Atelier" {
		t.Errorf("licensor = %q", lic.Licensor)
	}
	if lic.ServerURL != "https://license.aurora.example" {
		t.Errorf("server url = %q", lic.ServerURL)
	}
	if len(lic.Permits) != 1 || lic.Permits[0] != rsl.UsageSearch {
		t.Errorf("permits = %v", lic.Permits)
	}
	if len(lic.Prohibits) != 1 || lic.Prohibits[0] != rsl.UsageTrainGenAI {
		t.Errorf("prohibits = %v", lic.Prohibits)
	}
	if lic.ID == "" || lic.IssuedAt.IsZero() {
		t.Error("missing generated id or issue time")
	}
}

func TestBuildOverridesAndValidates(t *testing.T) {
	svc, _ := newTestService(t, testConfig())

	lic, err := svc.Build(Request{
		Licensor:  "Someone Else",
		Permits:   []string{"ai-summarize", "search"},
		PayType:   "purchase",
		PayAmount: "25",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if lic.Licensor != "Someone Else" {
		t.Errorf("licensor = %q", lic.Licensor)
	}
	if len(lic.Permits) != 2 {
		t.Errorf("permits = %v", lic.Permits)
	}
	if lic.Payment == nil || lic.Payment.Type != "purchase" {
		t.Errorf("payment = %+v", lic.Payment)
	}

	if _, err := svc.Build(Request{Permits: []string{"resell"}}); err == nil {
		t.Error("expected error for unknown usage class")
	}
}

func TestEmbedBytesRecordsAndRoundTrips(t *testing.T) {
	svc, st := newTestService(t, testConfig())
	lic, err := svc.Build(Request{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	out, err := svc.EmbedBytes(context.Background(), "cover.jpg", minimalJPEG(), lic)
	if err != nil {
		t.Fatalf("EmbedBytes: %v", err)
	}
	if out.Sidecar {
		t.Fatal("jpeg embed should not fall back to sidecar")
	}

	found, digest, err := svc.VerifyBytes(out.Data, "cover.jpg")
	if err != nil {
		t.Fatalf("VerifyBytes: %v", err)
	}
	if found.ID != lic.ID {
		t.Errorf("extracted id = %q, want %q", found.ID, lic.ID)
	}
	if out.Record == nil || out.Record.Digest != digest {
		t.Errorf("record digest mismatch: %+v vs %q", out.Record, digest)
	}

	rec, err := st.GetLicense(context.Background(), lic.ID)
	if err != nil {
		t.Fatalf("GetLicense: %v", err)
	}
	if rec.FileName != "cover.jpg" || rec.Format != string(media.FormatJPEG) {
		t.Errorf("record = %+v", rec)
	}
}

func TestEmbedBytesSidecarFallback(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	lic, err := svc.Build(Request{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	out, err := svc.EmbedBytes(context.Background(), "notes.txt", []byte("plain text"), lic)
	if err != nil {
		t.Fatalf("EmbedBytes: %v", err)
	}
	if !out.Sidecar {
		t.Fatal("expected sidecar fallback for unsupported content")
	}
	if !strings.HasSuffix(out.Path, ".rsl.xml") {
		t.Errorf("sidecar path = %q", out.Path)
	}
	decoded, err := rsl.DecodeXML(out.Data)
	if err != nil {
		t.Fatalf("decode sidecar payload: %v", err)
	}
	if decoded.ID != lic.ID {
		t.Errorf("sidecar id = %q", decoded.ID)
	}
}

func TestEmbedBytesSidecarDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Licensing.SidecarFallback = false
	svc, _ := newTestService(t, cfg)
	lic, err := svc.Build(Request{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := svc.EmbedBytes(context.Background(), "notes.txt", []byte("plain text"), lic); err == nil {
		t.Fatal("expected error with sidecar fallback disabled")
	}
}

func TestEmbedFileInPlace(t *testing.T) {
	svc, st := newTestService(t, testConfig())
	lic, err := svc.Build(Request{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	path := filepath.Join(t.TempDir(), "cover.jpg")
	if err := os.WriteFile(path, minimalJPEG(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	out, err := svc.EmbedFile(context.Background(), path, lic)
	if err != nil {
		t.Fatalf("EmbedFile: %v", err)
	}
	if out.Sidecar {
		t.Fatal("unexpected sidecar for jpeg file")
	}
	extracted, err := svc.ExtractFile(path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if extracted.ID != lic.ID {
		t.Errorf("extracted id = %q", extracted.ID)
	}
	if _, err := st.GetLicense(context.Background(), lic.ID); err != nil {
		t.Errorf("license record missing: %v", err)
	}
}
