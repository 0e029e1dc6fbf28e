package embedder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"artiquity/internal/rsl"
)

// xmpSegmentHeader is the namespace URI that identifies an XMP APP1 segment,
// including the trailing NUL.
var xmpSegmentHeader = []byte("http://ns.adobe.com/xap/1.0/\x00")

const (
	jpegMarkerPrefix = 0xFF
	jpegSOI          = 0xD8
	jpegEOI          = 0xD9
	jpegSOS          = 0xDA
	jpegAPP0         = 0xE0
	jpegAPP1         = 0xE1
	// Segment length field is 16-bit and includes itself.
	jpegMaxSegmentPayload = 0xFFFF - 2
)

type jpegSegment struct {
	marker  byte
	payload []byte // nil for standalone markers
}

// embedJPEG inserts an APP1 XMP segment carrying the license, replacing any
// existing XMP segment. All other segments and the entropy-coded tail are
// preserved byte for byte.
func embedJPEG(data []byte, lic rsl.License) ([]byte, error) {
	segments, tail, err := parseJPEGSegments(data)
	if err != nil {
		return nil, err
	}

	packet, err := lic.EncodeXMP()
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, len(xmpSegmentHeader)+len(packet))
	payload = append(payload, xmpSegmentHeader...)
	payload = append(payload, packet...)
	if len(payload) > jpegMaxSegmentPayload {
		return nil, fmt.Errorf("jpeg: xmp payload %d bytes exceeds segment limit", len(payload))
	}

	// Drop any prior XMP segment, then insert ours after the trailing run of
	// application segments so JFIF/EXIF stay first as readers expect.
	kept := make([]jpegSegment, 0, len(segments)+1)
	insertAt := 0
	for _, seg := range segments {
		if isXMPSegment(seg) {
			continue
		}
		kept = append(kept, seg)
		if seg.marker == jpegAPP0 || seg.marker == jpegAPP1 {
			insertAt = len(kept)
		}
	}
	xmpSeg := jpegSegment{marker: jpegAPP1, payload: payload}
	kept = append(kept[:insertAt], append([]jpegSegment{xmpSeg}, kept[insertAt:]...)...)

	return renderJPEG(kept, tail), nil
}

// extractJPEG locates the XMP APP1 segment and parses its RSL payload.
func extractJPEG(data []byte) (*rsl.License, error) {
	segments, _, err := parseJPEGSegments(data)
	if err != nil {
		return nil, err
	}
	for _, seg := range segments {
		if !isXMPSegment(seg) {
			continue
		}
		return rsl.DecodeXMP(seg.payload[len(xmpSegmentHeader):])
	}
	return nil, rsl.ErrNoLicense
}

func isXMPSegment(seg jpegSegment) bool {
	return seg.marker == jpegAPP1 && bytes.HasPrefix(seg.payload, xmpSegmentHeader)
}

// parseJPEGSegments walks the marker segments up to SOS (or EOI). The tail
// contains everything from the SOS marker on: entropy-coded data is opaque
// and is never reinterpreted.
func parseJPEGSegments(data []byte) ([]jpegSegment, []byte, error) {
	if len(data) < 2 || data[0] != jpegMarkerPrefix || data[1] != jpegSOI {
		return nil, nil, errors.New("jpeg: missing SOI marker")
	}

	var segments []jpegSegment
	pos := 2
	for pos < len(data) {
		if data[pos] != jpegMarkerPrefix {
			return nil, nil, fmt.Errorf("jpeg: expected marker at offset %d", pos)
		}
		// Fill bytes: markers may be preceded by extra 0xFF padding.
		for pos < len(data) && data[pos] == jpegMarkerPrefix {
			pos++
		}
		if pos >= len(data) {
			return nil, nil, errors.New("jpeg: truncated marker")
		}
		marker := data[pos]
		pos++

		switch {
		case marker == jpegSOS, marker == jpegEOI:
			return segments, data[pos-2:], nil
		case marker == 0x01, marker >= 0xD0 && marker <= 0xD7:
			segments = append(segments, jpegSegment{marker: marker})
		default:
			if pos+2 > len(data) {
				return nil, nil, errors.New("jpeg: truncated segment length")
			}
			length := int(binary.BigEndian.Uint16(data[pos : pos+2]))
			if length < 2 || pos+length > len(data) {
				return nil, nil, fmt.Errorf("jpeg: invalid segment length %d at offset %d", length, pos)
			}
			segments = append(segments, jpegSegment{
				marker:  marker,
				payload: data[pos+2 : pos+length],
			})
			pos += length
		}
	}
	return nil, nil, errors.New("jpeg: no SOS or EOI marker")
}

func renderJPEG(segments []jpegSegment, tail []byte) []byte {
	size := 2 + len(tail)
	for _, seg := range segments {
		size += 2
		if seg.payload != nil {
			size += 2 + len(seg.payload)
		}
	}

	out := make([]byte, 0, size)
	out = append(out, jpegMarkerPrefix, jpegSOI)
	for _, seg := range segments {
		out = append(out, jpegMarkerPrefix, seg.marker)
		if seg.payload != nil {
			var length [2]byte
			binary.BigEndian.PutUint16(length[:], uint16(len(seg.payload)+2))
			out = append(out, length[:]...)
			out = append(out, seg.payload...)
		}
	}
	return append(out, tail...)
}
