package embedder

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"artiquity/internal/rsl"
)

// PDF handling appends an incremental update: a new XMP metadata stream
// object plus a re-issued document catalog pointing at it, with its own xref
// section and trailer. Existing bytes are never rewritten, so prior
// signatures and revisions stay intact. Documents using cross-reference
// streams (PDF 1.5+ compressed xref) are not parsed; those fall back to the
// sidecar path.

var (
	startxrefPattern = regexp.MustCompile(`startxref\s+(\d+)\s*%%EOF`)
	rootPattern      = regexp.MustCompile(`/Root\s+(\d+)\s+(\d+)\s+R`)
	sizePattern      = regexp.MustCompile(`/Size\s+(\d+)`)
	metadataPattern  = regexp.MustCompile(`/Metadata\s+\d+\s+\d+\s+R`)
)

func embedPDF(data []byte, lic rsl.License) ([]byte, error) {
	packet, err := lic.EncodeXMP()
	if err != nil {
		return nil, err
	}

	trailer, err := parsePDFTrailer(data)
	if err != nil {
		return nil, err
	}

	catalogDict, err := findPDFObjectDict(data, trailer.rootNum)
	if err != nil {
		return nil, err
	}

	metaNum := trailer.size
	metaRef := fmt.Sprintf("/Metadata %d 0 R", metaNum)
	var newCatalog string
	if metadataPattern.Match(catalogDict) {
		newCatalog = metadataPattern.ReplaceAllString(string(catalogDict), metaRef)
	} else {
		idx := bytes.Index(catalogDict, []byte("<<"))
		if idx < 0 {
			return nil, errors.New("pdf: catalog object has no dictionary")
		}
		newCatalog = string(catalogDict[:idx+2]) + " " + metaRef + string(catalogDict[idx+2:])
	}

	var update bytes.Buffer
	base := len(data)
	if base > 0 && data[base-1] != '\n' {
		update.WriteByte('\n')
	}

	metaOffset := base + update.Len()
	fmt.Fprintf(&update, "%d 0 obj\n<< /Type /Metadata /Subtype /XML /Length %d >>\nstream\n", metaNum, len(packet))
	update.Write(packet)
	update.WriteString("\nendstream\nendobj\n")

	catalogOffset := base + update.Len()
	fmt.Fprintf(&update, "%d 0 obj\n%s\nendobj\n", trailer.rootNum, newCatalog)

	xrefOffset := base + update.Len()
	update.WriteString("xref\n")
	// Subsections must be in ascending object order; the catalog always has
	// a lower number than the freshly allocated metadata object.
	fmt.Fprintf(&update, "%d 1\n%010d %05d n \n", trailer.rootNum, catalogOffset, trailer.rootGen)
	fmt.Fprintf(&update, "%d 1\n%010d 00000 n \n", metaNum, metaOffset)
	fmt.Fprintf(&update, "trailer\n<< /Size %d /Root %d %d R /Prev %d >>\n", metaNum+1, trailer.rootNum, trailer.rootGen, trailer.startxref)
	fmt.Fprintf(&update, "startxref\n%d\n%%%%EOF\n", xrefOffset)

	out := make([]byte, 0, len(data)+update.Len())
	out = append(out, data...)
	return append(out, update.Bytes()...), nil
}

// extractPDF reads the RSL payload of the most recent metadata revision.
func extractPDF(data []byte) (*rsl.License, error) {
	start := bytes.LastIndex(data, []byte("<rsl"))
	if start < 0 {
		return nil, rsl.ErrNoLicense
	}
	end := bytes.Index(data[start:], []byte("</rsl>"))
	if end < 0 {
		return nil, errors.New("pdf: unterminated rsl element")
	}
	return rsl.DecodeXML(data[start : start+end+len("</rsl>")])
}

type pdfTrailer struct {
	size      int
	rootNum   int
	rootGen   int
	startxref int
}

// parsePDFTrailer reads the newest classic trailer dictionary. The matches
// are anchored to the last occurrences since incremental updates append.
func parsePDFTrailer(data []byte) (*pdfTrailer, error) {
	trailerIdx := bytes.LastIndex(data, []byte("trailer"))
	if trailerIdx < 0 {
		return nil, errors.New("pdf: no classic trailer (cross-reference stream?)")
	}
	region := data[trailerIdx:]

	sizeMatch := sizePattern.FindSubmatch(region)
	if sizeMatch == nil {
		return nil, errors.New("pdf: trailer missing /Size")
	}
	rootMatch := rootPattern.FindSubmatch(region)
	if rootMatch == nil {
		// /Root may live in an earlier trailer when updates only carry /Prev.
		rootMatch = rootPattern.FindSubmatch(data)
		if rootMatch == nil {
			return nil, errors.New("pdf: trailer missing /Root")
		}
	}
	xrefMatches := startxrefPattern.FindAllSubmatch(data, -1)
	if len(xrefMatches) == 0 {
		return nil, errors.New("pdf: missing startxref")
	}

	size, _ := strconv.Atoi(string(sizeMatch[1]))
	rootNum, _ := strconv.Atoi(string(rootMatch[1]))
	rootGen, _ := strconv.Atoi(string(rootMatch[2]))
	startxref, _ := strconv.Atoi(string(xrefMatches[len(xrefMatches)-1][1]))

	if size <= 0 || rootNum <= 0 {
		return nil, errors.New("pdf: implausible trailer values")
	}
	return &pdfTrailer{size: size, rootNum: rootNum, rootGen: rootGen, startxref: startxref}, nil
}

// findPDFObjectDict returns the dictionary of the newest revision of the
// numbered object.
func findPDFObjectDict(data []byte, num int) ([]byte, error) {
	pattern := regexp.MustCompile(`(?s)(?:^|[\r\n>\s])` + strconv.Itoa(num) + `\s+\d+\s+obj\b`)
	matches := pattern.FindAllIndex(data, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdf: object %d not found", num)
	}
	start := matches[len(matches)-1][1]

	end := bytes.Index(data[start:], []byte("endobj"))
	if end < 0 {
		return nil, fmt.Errorf("pdf: object %d not terminated", num)
	}
	body := data[start : start+end]

	dictStart := bytes.Index(body, []byte("<<"))
	if dictStart < 0 {
		return nil, fmt.Errorf("pdf: object %d has no dictionary", num)
	}
	depth := 0
	for i := dictStart; i+1 < len(body); i++ {
		switch {
		case body[i] == '<' && body[i+1] == '<':
			depth++
			i++
		case body[i] == '>' && body[i+1] == '>':
			depth--
			i++
			if depth == 0 {
				return bytes.TrimSpace(body[dictStart : i+1]), nil
			}
		}
	}
	return nil, fmt.Errorf("pdf: object %d dictionary not balanced", num)
}
