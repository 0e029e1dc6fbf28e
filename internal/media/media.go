package media

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format identifies a supported media container.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatMP3     Format = "mp3"
	FormatPDF     Format = "pdf"
	FormatUnknown Format = "unknown"
)

var (
	pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	pdfSignature = []byte("%PDF-")
	id3Signature = []byte("ID3")
)

// SniffLen is the number of leading bytes Detect needs to classify a file.
const SniffLen = 16

// Detect classifies data by magic bytes alone.
func Detect(data []byte) Format {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return FormatJPEG
	case bytes.HasPrefix(data, pngSignature):
		return FormatPNG
	case bytes.HasPrefix(data, pdfSignature):
		return FormatPDF
	case bytes.HasPrefix(data, id3Signature):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// Bare MPEG audio frame sync, no ID3 tag.
		return FormatMP3
	}
	return FormatUnknown
}

// DetectWithName classifies data by magic bytes, falling back to the file
// extension for content the sniffer cannot place.
func DetectWithName(data []byte, name string) Format {
	if format := Detect(data); format != FormatUnknown {
		return format
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".png":
		return FormatPNG
	case ".mp3":
		return FormatMP3
	case ".pdf":
		return FormatPDF
	}
	return FormatUnknown
}

// MIME returns the canonical MIME type for the format.
func (f Format) MIME() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatMP3:
		return "audio/mpeg"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Extension returns the preferred file extension, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatPNG:
		return ".png"
	case FormatMP3:
		return ".mp3"
	case FormatPDF:
		return ".pdf"
	}
	return ""
}

// Supported reports whether the embedder can write licenses into the format.
func (f Format) Supported() bool {
	switch f {
	case FormatJPEG, FormatPNG, FormatMP3, FormatPDF:
		return true
	}
	return false
}
