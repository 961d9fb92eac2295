package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"ledgerscan/internal/document"
)

// ExtractJSONObject pulls the first JSON object out of a model reply that
// may be wrapped in prose or markdown code fences. Models routinely ignore
// the "no prose" instruction, so the parser cannot assume a bare object.
func ExtractJSONObject(content string) ([]byte, error) {
	s := StripCodeFences(strings.TrimSpace(content))

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return []byte(s[start : i+1]), nil
			}
		}
	}
	return nil, fmt.Errorf("unterminated JSON object in model output")
}

// StripCodeFences removes a surrounding ```...``` block if present.
func StripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// optional language tag on the opening fence
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		first := strings.TrimSpace(s[:i])
		if len(first) <= 10 && !strings.ContainsAny(first, "{}") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

var numericFields = []string{"amount", "tax_amount", "confidence"}
var stringFields = []string{"document_class", "direction", "date", "counterparty", "description", "category"}

var knownFields = map[string]struct{}{
	"document_class": {}, "direction": {}, "date": {}, "amount": {},
	"tax_amount": {}, "counterparty": {}, "description": {}, "category": {},
	"confidence": {},
}

// SanitizeResponse repairs a raw model object so it decodes into the typed
// response shape: numeric fields arriving as strings are parsed, empty or
// "null" strings become absent, class/direction labels are normalized, and
// unknown keys are removed. Returns the cleaned JSON plus a note per repair.
func SanitizeResponse(raw []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var notes []string
	drop := func(k, why string) {
		delete(m, k)
		notes = append(notes, k+"("+why+")")
	}

	for _, k := range stringFields {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case nil:
			drop(k, "null")
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") {
				drop(k, "empty")
			} else {
				m[k] = s
			}
		default:
			drop(k, "type")
		}
	}
	for _, k := range []string{"document_class", "direction"} {
		if s, ok := m[k].(string); ok {
			m[k] = strings.ToLower(s)
		}
	}

	for _, k := range numericFields {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case nil:
			drop(k, "null")
		case float64:
			// already a number
		case string:
			s := strings.TrimSpace(t)
			s = strings.Trim(s, "$€£ ")
			s = strings.ReplaceAll(s, ",", "")
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				m[k] = f
				notes = append(notes, k+"(string->number)")
			} else {
				drop(k, "unparsable")
			}
		default:
			drop(k, "type")
		}
	}

	for k := range m {
		if _, ok := knownFields[k]; !ok {
			drop(k, "unknown")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, notes, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, notes, nil
}

// DecodeResponse runs the full lenient path: locate the JSON object in the
// model reply, sanitize it, and unmarshal into the typed response. The
// returned notes record every repair applied.
func DecodeResponse(content string) (document.ExtractionResponse, []string, error) {
	var out document.ExtractionResponse

	raw, err := ExtractJSONObject(content)
	if err != nil {
		return out, nil, err
	}
	cleaned, notes, err := SanitizeResponse(raw)
	if err != nil {
		return out, notes, err
	}
	if err := ValidateAgainstResponseSchema(cleaned); err != nil {
		return out, notes, err
	}
	if err := json.Unmarshal(cleaned, &out); err != nil {
		return out, notes, fmt.Errorf("unmarshal response: %w", err)
	}
	return out, notes, nil
}
