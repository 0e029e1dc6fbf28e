package rsl

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// Namespace is the XML namespace for RSL documents.
const Namespace = "https://rslstandard.org/rsl"

type xmlDocument struct {
	XMLName xml.Name   `xml:"rsl"`
	XMLNS   string     `xml:"xmlns,attr"`
	Content xmlContent `xml:"content"`
}

type xmlContent struct {
	License xmlLicense `xml:"license"`
}

type xmlLicense struct {
	ID        string      `xml:"id,attr"`
	IssuedAt  string      `xml:"issued,attr"`
	Licensor  xmlLicensor `xml:"licensor"`
	Permits   *xmlUsage   `xml:"permits,omitempty"`
	Prohibits *xmlUsage   `xml:"prohibits,omitempty"`
	Payment   *xmlPayment `xml:"payment,omitempty"`
	Legal     *xmlLegal   `xml:"legal,omitempty"`
	Server    *xmlServer  `xml:"server,omitempty"`
	Standard  xmlStandard `xml:"standard"`
}

type xmlLicensor struct {
	Name string `xml:",chardata"`
}

type xmlUsage struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type xmlPayment struct {
	Type     string `xml:"type,attr"`
	Amount   string `xml:"amount,attr,omitempty"`
	Currency string `xml:"currency,attr,omitempty"`
}

type xmlLegal struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type xmlServer struct {
	URL string `xml:"url,attr"`
}

type xmlStandard struct {
	URL string `xml:"url,attr"`
}

// EncodeXML renders the license as an RSL XML document. This is the form
// carried in XMP packets, PDF metadata streams, and sidecar files.
func (l License) EncodeXML() ([]byte, error) {
	canonical := l.Canonical()
	if err := canonical.Validate(); err != nil {
		return nil, err
	}

	doc := xmlDocument{
		XMLNS: Namespace,
		Content: xmlContent{
			License: xmlLicense{
				ID:       canonical.ID,
				IssuedAt: canonical.IssuedAt.Format(time.RFC3339),
				Licensor: xmlLicensor{Name: canonical.Licensor},
				Standard: xmlStandard{URL: canonical.StandardURL},
			},
		},
	}
	if len(canonical.Permits) > 0 {
		doc.Content.License.Permits = &xmlUsage{Type: "usage", Value: joinClasses(canonical.Permits)}
	}
	if len(canonical.Prohibits) > 0 {
		doc.Content.License.Prohibits = &xmlUsage{Type: "usage", Value: joinClasses(canonical.Prohibits)}
	}
	if canonical.Payment != nil {
		doc.Content.License.Payment = &xmlPayment{
			Type:     canonical.Payment.Type,
			Amount:   canonical.Payment.Amount,
			Currency: canonical.Payment.Currency,
		}
	}
	if canonical.Copyright != "" {
		doc.Content.License.Legal = &xmlLegal{Type: "copyright", Value: canonical.Copyright}
	}
	if canonical.ServerURL != "" {
		doc.Content.License.Server = &xmlServer{URL: canonical.ServerURL}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	encoder := xml.NewEncoder(&buf)
	encoder.Indent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("rsl: encode xml: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// DecodeXML parses a license from an RSL XML document.
func DecodeXML(data []byte) (*License, error) {
	var doc xmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("rsl: decode xml: %w", err)
	}

	entry := doc.Content.License
	lic := License{
		ID:          entry.ID,
		Licensor:    strings.TrimSpace(entry.Licensor.Name),
		StandardURL: entry.Standard.URL,
	}
	if lic.StandardURL == "" {
		lic.StandardURL = Namespace
	}
	if entry.IssuedAt != "" {
		issued, err := time.Parse(time.RFC3339, entry.IssuedAt)
		if err != nil {
			return nil, fmt.Errorf("rsl: decode xml: issued attr: %w", err)
		}
		lic.IssuedAt = issued.UTC()
	}
	if entry.Permits != nil {
		classes, err := splitClasses(entry.Permits.Value)
		if err != nil {
			return nil, fmt.Errorf("rsl: decode xml: permits: %w", err)
		}
		lic.Permits = classes
	}
	if entry.Prohibits != nil {
		classes, err := splitClasses(entry.Prohibits.Value)
		if err != nil {
			return nil, fmt.Errorf("rsl: decode xml: prohibits: %w", err)
		}
		lic.Prohibits = classes
	}
	if entry.Payment != nil {
		lic.Payment = &Payment{
			Type:     entry.Payment.Type,
			Amount:   entry.Payment.Amount,
			Currency: entry.Payment.Currency,
		}
	}
	if entry.Legal != nil {
		lic.Copyright = strings.TrimSpace(entry.Legal.Value)
	}
	if entry.Server != nil {
		lic.ServerURL = entry.Server.URL
	}

	if err := lic.Validate(); err != nil {
		return nil, err
	}
	return &lic, nil
}

func joinClasses(classes []UsageClass) string {
	parts := make([]string, len(classes))
	for i, class := range classes {
		parts[i] = string(class)
	}
	return strings.Join(parts, ",")
}

func splitClasses(value string) ([]UsageClass, error) {
	var classes []UsageClass
	for _, part := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		class, err := ParseUsageClass(trimmed)
		if err != nil {
			return nil, err
		}
		classes = append(classes, class)
	}
	return classes, nil
}
