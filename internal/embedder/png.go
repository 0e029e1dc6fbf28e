package embedder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"artiquity/internal/rsl"
)

// xmpKeyword is the registered iTXt keyword for XMP packets.
const xmpKeyword = "XML:com.adobe.xmp"

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

type pngChunk struct {
	typ  string
	data []byte
}

// embedPNG splices an iTXt chunk carrying the XMP packet directly after
// IHDR, replacing any existing XMP chunk. Untouched chunks re-render to the
// same bytes since chunk CRCs are deterministic.
func embedPNG(data []byte, lic rsl.License) ([]byte, error) {
	chunks, err := parsePNGChunks(data)
	if err != nil {
		return nil, err
	}

	packet, err := lic.EncodeXMP()
	if err != nil {
		return nil, err
	}

	// iTXt layout: keyword NUL compressionFlag compressionMethod
	// languageTag NUL translatedKeyword NUL text.
	payload := make([]byte, 0, len(xmpKeyword)+5+len(packet))
	payload = append(payload, xmpKeyword...)
	payload = append(payload, 0x00, 0x00, 0x00, 0x00, 0x00)
	payload = append(payload, packet...)

	out := make([]pngChunk, 0, len(chunks)+1)
	inserted := false
	for _, chunk := range chunks {
		if chunk.typ == "iTXt" && isXMPChunk(chunk.data) {
			continue
		}
		out = append(out, chunk)
		if chunk.typ == "IHDR" && !inserted {
			out = append(out, pngChunk{typ: "iTXt", data: payload})
			inserted = true
		}
	}
	if !inserted {
		return nil, errors.New("png: missing IHDR chunk")
	}

	return renderPNG(out), nil
}

// extractPNG finds the XMP iTXt chunk and parses its RSL payload.
func extractPNG(data []byte) (*rsl.License, error) {
	chunks, err := parsePNGChunks(data)
	if err != nil {
		return nil, err
	}
	for _, chunk := range chunks {
		if chunk.typ != "iTXt" || !isXMPChunk(chunk.data) {
			continue
		}
		text, err := itxtText(chunk.data)
		if err != nil {
			return nil, err
		}
		return rsl.DecodeXMP(text)
	}
	return nil, rsl.ErrNoLicense
}

func isXMPChunk(data []byte) bool {
	idx := bytes.IndexByte(data, 0x00)
	return idx >= 0 && string(data[:idx]) == xmpKeyword
}

// itxtText strips the iTXt header fields and returns the text payload.
// Compressed XMP chunks are rejected; XMP packets are stored uncompressed.
func itxtText(data []byte) ([]byte, error) {
	idx := bytes.IndexByte(data, 0x00)
	if idx < 0 || idx+2 >= len(data) {
		return nil, errors.New("png: malformed iTXt chunk")
	}
	compressionFlag := data[idx+1]
	if compressionFlag != 0 {
		return nil, errors.New("png: compressed XMP chunk not supported")
	}
	rest := data[idx+3:]
	// Skip language tag and translated keyword.
	for i := 0; i < 2; i++ {
		term := bytes.IndexByte(rest, 0x00)
		if term < 0 {
			return nil, errors.New("png: malformed iTXt chunk")
		}
		rest = rest[term+1:]
	}
	return rest, nil
}

func parsePNGChunks(data []byte) ([]pngChunk, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, errors.New("png: missing signature")
	}

	var chunks []pngChunk
	pos := len(pngSignature)
	for pos < len(data) {
		if pos+8 > len(data) {
			return nil, fmt.Errorf("png: truncated chunk header at offset %d", pos)
		}
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		typ := string(data[pos+4 : pos+8])
		if pos+8+length+4 > len(data) {
			return nil, fmt.Errorf("png: truncated chunk %s at offset %d", typ, pos)
		}
		chunks = append(chunks, pngChunk{
			typ:  typ,
			data: data[pos+8 : pos+8+length],
		})
		pos += 8 + length + 4
		if typ == "IEND" {
			break
		}
	}
	if len(chunks) == 0 || chunks[len(chunks)-1].typ != "IEND" {
		return nil, errors.New("png: missing IEND chunk")
	}
	return chunks, nil
}

func renderPNG(chunks []pngChunk) []byte {
	size := len(pngSignature)
	for _, chunk := range chunks {
		size += 12 + len(chunk.data)
	}

	out := make([]byte, 0, size)
	out = append(out, pngSignature...)
	for _, chunk := range chunks {
		var header [8]byte
		binary.BigEndian.PutUint32(header[:4], uint32(len(chunk.data)))
		copy(header[4:], chunk.typ)
		out = append(out, header[:]...)
		out = append(out, chunk.data...)

		crc := crc32.NewIEEE()
		crc.Write([]byte(chunk.typ))
		crc.Write(chunk.data)
		var sum [4]byte
		binary.BigEndian.PutUint32(sum[:], crc.Sum32())
		out = append(out, sum[:]...)
	}
	return out
}
