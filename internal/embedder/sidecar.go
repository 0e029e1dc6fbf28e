package embedder

import (
	"fmt"
	"os"

	"artiquity/internal/fileutil"
	"artiquity/internal/rsl"
)

const sidecarSuffix = ".rsl.xml"

// SidecarPath returns the sidecar license path for a media file.
func SidecarPath(path string) string {
	return path + sidecarSuffix
}

// WriteSidecar writes the license as an RSL XML document next to the media
// file and returns the sidecar path.
func WriteSidecar(path string, lic rsl.License) (string, error) {
	if err := lic.Validate(); err != nil {
		return "", err
	}
	doc, err := lic.EncodeXML()
	if err != nil {
		return "", err
	}
	sidecarPath := SidecarPath(path)
	if err := fileutil.WriteFileAtomic(sidecarPath, doc, 0o644); err != nil {
		return "", fmt.Errorf("write sidecar %s: %w", sidecarPath, err)
	}
	return sidecarPath, nil
}

// ReadSidecar loads the sidecar license for a media file.
func ReadSidecar(path string) (*rsl.License, error) {
	data, err := os.ReadFile(SidecarPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rsl.ErrNoLicense
		}
		return nil, err
	}
	return rsl.DecodeXML(data)
}
