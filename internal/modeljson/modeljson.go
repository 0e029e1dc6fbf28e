// Package modeljson decodes JSON payloads produced by hosted generative
// models, tolerating the formatting quirks they are prone to: markdown code
// fences, leading prose, and trailing commentary around the JSON body.
package modeljson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Decode decodes JSON from a model response, handling common formatting quirks.
func Decode(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizePayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, Snippet(trimmed))
	}

	sanitizedErr := json.Unmarshal([]byte(sanitized), target)
	if sanitizedErr == nil {
		return nil
	}
	return fmt.Errorf("%w (sanitized payload snippet: %s)", sanitizedErr, Snippet(sanitized))
}

func sanitizePayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
		body = strings.TrimLeft(body, " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// Snippet condenses a payload into a single short line for error messages.
func Snippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	replacer := strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")
	clean := replacer.Replace(trimmed)
	clean = strings.Join(strings.Fields(clean), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
