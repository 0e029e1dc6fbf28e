package rsl

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UsageClass identifies a machine-usage category covered by a license.
type UsageClass string

const (
	UsageAll         UsageClass = "all"
	UsageTrainAI     UsageClass = "train-ai"
	UsageTrainGenAI  UsageClass = "train-genai"
	UsageAIUse       UsageClass = "ai-use"
	UsageAISummarize UsageClass = "ai-summarize"
	UsageSearch      UsageClass = "search"
)

var usageClasses = map[UsageClass]struct{}{
	UsageAll:         {},
	UsageTrainAI:     {},
	UsageTrainGenAI:  {},
	UsageAIUse:       {},
	UsageAISummarize: {},
	UsageSearch:      {},
}

// ParseUsageClass validates a usage class string.
func ParseUsageClass(value string) (UsageClass, error) {
	class := UsageClass(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := usageClasses[class]; !ok {
		return "", fmt.Errorf("unknown usage class %q", value)
	}
	return class, nil
}

// Payment describes the compensation terms attached to a license.
type Payment struct {
	Type     string `json:"type"`
	Amount   string `json:"amount,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// License is the RSL payload embedded into media files. Field order is the
// canonical JSON order; Digest depends on it.
type License struct {
	ID          string       `json:"id"`
	Licensor    string       `json:"licensor"`
	ServerURL   string       `json:"server_url,omitempty"`
	StandardURL string       `json:"standard_url"`
	Permits     []UsageClass `json:"permits"`
	Prohibits   []UsageClass `json:"prohibits"`
	Payment     *Payment     `json:"payment,omitempty"`
	Copyright   string       `json:"copyright,omitempty"`
	IssuedAt    time.Time    `json:"issued_at"`
}

// New constructs a license with a fresh UUID and the issue time set to now.
func New(licensor string) License {
	return License{
		ID:          uuid.NewString(),
		Licensor:    strings.TrimSpace(licensor),
		StandardURL: "https://rslstandard.org/rsl",
		IssuedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

// Validate checks the license for embedding.
func (l *License) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return errors.New("rsl: license id required")
	}
	if strings.TrimSpace(l.Licensor) == "" {
		return errors.New("rsl: licensor required")
	}
	for _, class := range l.Permits {
		if _, ok := usageClasses[class]; !ok {
			return fmt.Errorf("rsl: permits: unknown usage class %q", class)
		}
	}
	for _, class := range l.Prohibits {
		if _, ok := usageClasses[class]; !ok {
			return fmt.Errorf("rsl: prohibits: unknown usage class %q", class)
		}
	}
	if l.IssuedAt.IsZero() {
		return errors.New("rsl: issued_at required")
	}
	return nil
}

// Canonical returns a copy with usage classes sorted and timestamps in UTC,
// so two logically equal licenses always serialize identically.
func (l License) Canonical() License {
	out := l
	out.Permits = sortedClasses(l.Permits)
	out.Prohibits = sortedClasses(l.Prohibits)
	out.IssuedAt = l.IssuedAt.UTC().Truncate(time.Second)
	return out
}

// EncodeJSON renders the canonical compact JSON form used for EXIF, ID3, and
// PNG payloads.
func (l License) EncodeJSON() ([]byte, error) {
	canonical := l.Canonical()
	if err := canonical.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(canonical)
}

// DecodeJSON parses a license from its JSON rendering.
func DecodeJSON(data []byte) (*License, error) {
	var lic License
	if err := json.Unmarshal(data, &lic); err != nil {
		return nil, fmt.Errorf("rsl: decode json: %w", err)
	}
	if err := lic.Validate(); err != nil {
		return nil, err
	}
	return &lic, nil
}

// Digest returns the hex SHA-256 of the canonical JSON rendering. Verify
// operations compare digests rather than whole payloads.
func (l License) Digest() (string, error) {
	encoded, err := l.EncodeJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

func sortedClasses(classes []UsageClass) []UsageClass {
	if len(classes) == 0 {
		return nil
	}
	out := make([]UsageClass, len(classes))
	copy(out, classes)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
