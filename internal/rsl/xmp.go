package rsl

import (
	"bytes"
	"errors"
	"fmt"
)

const (
	xpacketBegin = "<?xpacket begin=\"\uFEFF\" id=\"W5M0MpCehiHzreSzNTczkc9d\"?>\n"
	xpacketEnd   = "\n" + `<?xpacket end="w"?>`
	xmpMetaOpen  = `<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="Artiquity RSL">` + "\n" +
		`<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` + "\n" +
		`<rdf:Description rdf:about="">` + "\n"
	xmpMetaClose = "\n</rdf:Description>\n</rdf:RDF>\n</x:xmpmeta>"
)

// ErrNoLicense indicates a payload carries no RSL document.
var ErrNoLicense = errors.New("rsl: no license payload found")

// EncodeXMP wraps the RSL XML document in an XMP packet suitable for JPEG
// APP1 segments, PNG iTXt chunks, and PDF metadata streams.
func (l License) EncodeXMP() ([]byte, error) {
	doc, err := l.EncodeXML()
	if err != nil {
		return nil, err
	}
	// Strip the standalone XML declaration; an XMP packet carries its own
	// processing instructions.
	doc = bytes.TrimPrefix(doc, []byte(`<?xml version="1.0" encoding="UTF-8"?>`))
	doc = bytes.TrimSpace(doc)

	var buf bytes.Buffer
	buf.Grow(len(doc) + 512)
	buf.WriteString(xpacketBegin)
	buf.WriteString(xmpMetaOpen)
	buf.Write(doc)
	buf.WriteString(xmpMetaClose)
	buf.WriteString(xpacketEnd)
	return buf.Bytes(), nil
}

// DecodeXMP extracts and parses the RSL document embedded in an XMP packet.
func DecodeXMP(packet []byte) (*License, error) {
	doc, err := extractRSLElement(packet)
	if err != nil {
		return nil, err
	}
	return DecodeXML(doc)
}

// extractRSLElement locates the <rsl>...</rsl> element inside arbitrary XML.
func extractRSLElement(data []byte) ([]byte, error) {
	start := bytes.Index(data, []byte("<rsl"))
	if start < 0 {
		return nil, ErrNoLicense
	}
	end := bytes.Index(data[start:], []byte("</rsl>"))
	if end < 0 {
		return nil, fmt.Errorf("rsl: unterminated rsl element")
	}
	return data[start : start+end+len("</rsl>")], nil
}
