// Package llmjson holds the robust LLM-output extraction helpers shared by
// internal/classifier and internal/narration: stripping code fences,
// locating the first balanced JSON object in a reply, and falling back to
// regex field extraction when a model wraps JSON in prose. Consolidated
// into one copy rather than the near-duplicate pair the logic started from.
package llmjson

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	fenceStart = regexp.MustCompile(`(?is)^\s*` + "```" + `(?:json)?\s*`)
	fenceEnd   = regexp.MustCompile(`(?is)\s*` + "```" + `\s*$`)
)

// Clean strips ```json fences and a leading BOM from a raw LLM reply.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.TrimPrefix(s, string(rune(0xFEFF)))
	s = fenceStart.ReplaceAllString(s, "")
	s = fenceEnd.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ExtractFirstObject returns the first complete, balanced `{...}` block in
// input, scanning string/escape-aware so braces inside quoted values don't
// throw off the depth count. Returns "" if no balanced object is found.
func ExtractFirstObject(input string) string {
	start := strings.IndexByte(input, '{')
	if start == -1 {
		return ""
	}

	inString := false
	escape := false
	depth := 0

	for i := start; i < len(input); i++ {
		ch := input[i]

		if inString {
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
			if depth < 0 {
				return ""
			}
		}
	}
	return ""
}

// ParseObject tries, in order: the first balanced object inside the cleaned
// reply, the first balanced object inside the raw reply, the cleaned reply
// verbatim, and the raw reply verbatim — unmarshalling each into out until
// one succeeds. Mirrors the layered fallback the teacher's response parser
// uses, generalized beyond one fixed struct shape.
func ParseObject(raw string, out any) error {
	cleaned := Clean(raw)

	candidates := []string{
		ExtractFirstObject(cleaned),
		ExtractFirstObject(raw),
		cleaned,
		raw,
	}
	var lastErr error
	for _, c := range candidates {
		if strings.TrimSpace(c) == "" {
			continue
		}
		if err := json.Unmarshal([]byte(c), out); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no JSON object found in reply")
	}
	return lastErr
}

// ExtractStringField pulls `"field": "..."` out of s via regex even when the
// surrounding text isn't valid JSON, unescaping the captured value.
func ExtractStringField(s, field string) (string, bool) {
	re := regexp.MustCompile(`(?is)"` + regexp.QuoteMeta(field) + `"\s*:\s*"((?:\\.|[^"\\])*)"`)
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return "", false
	}
	raw := m[1]
	unq, err := strconv.Unquote(`"` + raw + `"`)
	if err != nil {
		unq = unescapeMinimal(raw)
	}
	unq = strings.TrimSpace(UnescapeMaybeDoubleEscaped(unq))
	if unq == "" {
		return "", false
	}
	return unq, true
}

// ExtractField runs the same layered fallback as ParseObject but for a
// single named string field: cleaned-object, raw-object, cleaned text, raw
// text, each tried via regex extraction of the field.
func ExtractField(raw, field string) (string, bool) {
	cleaned := Clean(raw)

	if obj := ExtractFirstObject(cleaned); obj != "" {
		if v, ok := ExtractStringField(obj, field); ok {
			return v, true
		}
	}
	if obj := ExtractFirstObject(raw); obj != "" {
		if v, ok := ExtractStringField(obj, field); ok {
			return v, true
		}
	}
	if v, ok := ExtractStringField(cleaned, field); ok {
		return v, true
	}
	if v, ok := ExtractStringField(raw, field); ok {
		return v, true
	}
	return "", false
}

// UnescapeMaybeDoubleEscaped fixes the common case where a model emits
// double-escaped text (e.g. `\\n` where a literal newline was intended).
func UnescapeMaybeDoubleEscaped(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, `\`) {
		return s
	}
	quoted := `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	if unq, err := strconv.Unquote(quoted); err == nil {
		return strings.TrimSpace(unq)
	}
	return unescapeMinimal(s)
}

func unescapeMinimal(s string) string {
	replacer := strings.NewReplacer(
		`\\`, `\`,
		`\"`, `"`,
		`\n`, "\n",
		`\r`, "\r",
		`\t`, "\t",
	)
	return replacer.Replace(s)
}
