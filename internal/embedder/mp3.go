package embedder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"

	"artiquity/internal/rsl"
)

// rslFrameDescription is the TXXX description that identifies the RSL frame.
const rslFrameDescription = "RSL License"

const (
	id3HeaderLen = 10
	id3FrameLen  = 10

	id3EncodingLatin1  = 0x00
	id3EncodingUTF16   = 0x01
	id3EncodingUTF16BE = 0x02
	id3EncodingUTF8    = 0x03
)

type id3Frame struct {
	id      string
	flags   [2]byte
	payload []byte
}

type id3Tag struct {
	version byte // major version: 3 or 4
	frames  []id3Frame
}

// embedMP3 writes the license JSON into a TXXX frame. Files with an existing
// ID3v2.3/2.4 tag keep their version and frames; only the RSL frame is
// replaced and the tag header size updated. Untagged files get a fresh
// ID3v2.4 tag prepended ahead of the audio data.
func embedMP3(data []byte, lic rsl.License) ([]byte, error) {
	payload, err := lic.EncodeJSON()
	if err != nil {
		return nil, err
	}

	tag, audio, err := parseID3(data)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		tag = &id3Tag{version: 4}
	}

	kept := tag.frames[:0:0]
	for _, frame := range tag.frames {
		if frame.id == "TXXX" && txxxDescription(frame.payload) == rslFrameDescription {
			continue
		}
		kept = append(kept, frame)
	}
	tag.frames = append(kept, buildRSLFrame(tag.version, payload))

	rendered, err := renderID3(tag)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(rendered)+len(audio))
	out = append(out, rendered...)
	return append(out, audio...), nil
}

// extractMP3 finds the RSL TXXX frame and parses its JSON payload.
func extractMP3(data []byte) (*rsl.License, error) {
	tag, _, err := parseID3(data)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, rsl.ErrNoLicense
	}
	for _, frame := range tag.frames {
		if frame.id != "TXXX" || txxxDescription(frame.payload) != rslFrameDescription {
			continue
		}
		text, err := txxxValue(frame.payload)
		if err != nil {
			return nil, err
		}
		return rsl.DecodeJSON(text)
	}
	return nil, rsl.ErrNoLicense
}

// parseID3 splits data into its leading ID3v2 tag (nil when absent) and the
// audio payload.
func parseID3(data []byte) (*id3Tag, []byte, error) {
	if !bytes.HasPrefix(data, []byte("ID3")) {
		return nil, data, nil
	}
	if len(data) < id3HeaderLen {
		return nil, nil, errors.New("id3: truncated header")
	}

	version := data[3]
	if version != 3 && version != 4 {
		return nil, nil, fmt.Errorf("id3: unsupported tag version 2.%d", version)
	}
	flags := data[5]
	if flags&0x40 != 0 {
		return nil, nil, errors.New("id3: extended header not supported")
	}
	if flags&0x10 != 0 {
		return nil, nil, errors.New("id3: tag footer not supported")
	}
	if flags&0x80 != 0 {
		return nil, nil, errors.New("id3: unsynchronised tag not supported")
	}

	size := decodeSynchsafe(data[6:10])
	if id3HeaderLen+size > len(data) {
		return nil, nil, errors.New("id3: tag size exceeds file")
	}
	body := data[id3HeaderLen : id3HeaderLen+size]
	audio := data[id3HeaderLen+size:]

	tag := &id3Tag{version: version}
	pos := 0
	for pos+id3FrameLen <= len(body) {
		if body[pos] == 0x00 {
			break // padding
		}
		id := string(body[pos : pos+4])
		var frameSize int
		if version == 4 {
			frameSize = decodeSynchsafe(body[pos+4 : pos+8])
		} else {
			frameSize = int(binary.BigEndian.Uint32(body[pos+4 : pos+8]))
		}
		if frameSize < 0 || pos+id3FrameLen+frameSize > len(body) {
			return nil, nil, fmt.Errorf("id3: invalid size for frame %s", id)
		}
		frame := id3Frame{id: id, payload: body[pos+id3FrameLen : pos+id3FrameLen+frameSize]}
		copy(frame.flags[:], body[pos+8:pos+10])
		tag.frames = append(tag.frames, frame)
		pos += id3FrameLen + frameSize
	}

	return tag, audio, nil
}

func renderID3(tag *id3Tag) ([]byte, error) {
	var body bytes.Buffer
	for _, frame := range tag.frames {
		if len(frame.id) != 4 {
			return nil, fmt.Errorf("id3: invalid frame id %q", frame.id)
		}
		body.WriteString(frame.id)
		var size [4]byte
		if tag.version == 4 {
			encodeSynchsafe(size[:], len(frame.payload))
		} else {
			binary.BigEndian.PutUint32(size[:], uint32(len(frame.payload)))
		}
		body.Write(size[:])
		body.Write(frame.flags[:])
		body.Write(frame.payload)
	}

	if body.Len() > 0x0FFFFFFF {
		return nil, errors.New("id3: tag exceeds synchsafe size limit")
	}

	out := make([]byte, id3HeaderLen, id3HeaderLen+body.Len())
	copy(out, "ID3")
	out[3] = tag.version
	encodeSynchsafe(out[6:10], body.Len())
	return append(out, body.Bytes()...), nil
}

// buildRSLFrame encodes the TXXX payload. ID3v2.4 carries UTF-8 directly;
// v2.3 predates UTF-8 text encoding, so there the strings go as UTF-16 with
// a byte order mark.
func buildRSLFrame(version byte, text []byte) id3Frame {
	var payload []byte
	if version == 4 {
		payload = make([]byte, 0, 1+len(rslFrameDescription)+1+len(text))
		payload = append(payload, id3EncodingUTF8)
		payload = append(payload, rslFrameDescription...)
		payload = append(payload, 0x00)
		payload = append(payload, text...)
	} else {
		desc := encodeUTF16LE(rslFrameDescription)
		value := encodeUTF16LE(string(text))
		payload = make([]byte, 0, 1+len(desc)+2+len(value))
		payload = append(payload, id3EncodingUTF16)
		payload = append(payload, desc...)
		payload = append(payload, 0x00, 0x00)
		payload = append(payload, value...)
	}
	return id3Frame{id: "TXXX", payload: payload}
}

// txxxDescription decodes the description field of a TXXX frame, tolerating
// the encodings the tag versions allow. Returns "" for malformed frames.
func txxxDescription(payload []byte) string {
	desc, _, err := splitTXXX(payload)
	if err != nil {
		return ""
	}
	return desc
}

func txxxValue(payload []byte) ([]byte, error) {
	_, value, err := splitTXXX(payload)
	return value, err
}

func splitTXXX(payload []byte) (string, []byte, error) {
	if len(payload) < 2 {
		return "", nil, errors.New("id3: short TXXX frame")
	}
	encoding := payload[0]
	rest := payload[1:]

	switch encoding {
	case id3EncodingLatin1, id3EncodingUTF8:
		term := bytes.IndexByte(rest, 0x00)
		if term < 0 {
			return "", nil, errors.New("id3: unterminated TXXX description")
		}
		return string(rest[:term]), rest[term+1:], nil
	case id3EncodingUTF16, id3EncodingUTF16BE:
		term := indexDoubleZero(rest)
		if term < 0 {
			return "", nil, errors.New("id3: unterminated TXXX description")
		}
		desc := decodeUTF16(rest[:term], encoding)
		value := decodeUTF16(rest[term+2:], encoding)
		return desc, []byte(value), nil
	}
	return "", nil, fmt.Errorf("id3: unknown text encoding %#x", encoding)
}

func decodeSynchsafe(b []byte) int {
	return int(b[0]&0x7F)<<21 | int(b[1]&0x7F)<<14 | int(b[2]&0x7F)<<7 | int(b[3]&0x7F)
}

func encodeSynchsafe(dst []byte, value int) {
	dst[0] = byte(value >> 21 & 0x7F)
	dst[1] = byte(value >> 14 & 0x7F)
	dst[2] = byte(value >> 7 & 0x7F)
	dst[3] = byte(value & 0x7F)
}

// indexDoubleZero finds a UTF-16 NUL terminator on a code unit boundary.
func indexDoubleZero(data []byte) int {
	for i := 0; i+1 < len(data); i += 2 {
		if data[i] == 0x00 && data[i+1] == 0x00 {
			return i
		}
	}
	return -1
}

func encodeUTF16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 2, 2+len(units)*2)
	out[0], out[1] = 0xFF, 0xFE // BOM
	for _, unit := range units {
		out = append(out, byte(unit), byte(unit>>8))
	}
	return out
}

func decodeUTF16(data []byte, encoding byte) string {
	bigEndian := encoding == id3EncodingUTF16BE
	if encoding == id3EncodingUTF16 && len(data) >= 2 {
		switch {
		case data[0] == 0xFE && data[1] == 0xFF:
			bigEndian = true
			data = data[2:]
		case data[0] == 0xFF && data[1] == 0xFE:
			data = data[2:]
		}
	}
	units := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		if bigEndian {
			units = append(units, uint16(data[i])<<8|uint16(data[i+1]))
		} else {
			units = append(units, uint16(data[i])|uint16(data[i+1])<<8)
		}
	}
	return string(utf16.Decode(units))
}
