package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when the model output contains no JSON object.
var ErrNoJSON = errors.New("no JSON object in response")

var (
	trailingComma   = regexp.MustCompile(`,\s*([}\]])`)
	singleQuotedKey = regexp.MustCompile(`'([A-Za-z_][A-Za-z0-9_]*)'\s*:`)
	singleQuotedVal = regexp.MustCompile(`:\s*'([^'"]*)'`)
	smartQuotes     = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
)

// extractObject strips code fences and returns the text between the first
// '{' and the last '}'.
func extractObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

// repairJSON applies progressively looser fixes until the object decodes.
func repairJSON(text string, v any) error {
	obj, err := extractObject(text)
	if err != nil {
		return err
	}

	attempts := []func(string) string{
		func(s string) string { return s },
		func(s string) string { return smartQuotes.Replace(s) },
		func(s string) string { return trailingComma.ReplaceAllString(s, "$1") },
		func(s string) string {
			s = singleQuotedKey.ReplaceAllString(s, `"$1":`)
			return singleQuotedVal.ReplaceAllString(s, `: "$1"`)
		},
	}

	var lastErr error
	candidate := obj
	for _, fix := range attempts {
		candidate = fix(candidate)
		if lastErr = json.Unmarshal([]byte(candidate), v); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("failed to parse analysis JSON: %w", lastErr)
}

// flexText decodes either a string or a list of strings.
type flexText string

func (f *flexText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexText(s)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	items := make([]string, 0, len(list))
	for _, item := range list {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, "- "+item)
		}
	}
	*f = flexText(strings.Join(items, "\n"))
	return nil
}

// flexScore decodes a number or a numeric string.
type flexScore float64

func (f *flexScore) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexScore(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected number: %w", err)
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &n); err != nil {
		return fmt.Errorf("expected number, got %q", s)
	}
	*f = flexScore(n)
	return nil
}

// clampScore bounds f to 0..100 before converting, since out-of-range
// float to int conversions are implementation-defined.
func clampScore(f flexScore) int {
	v := float64(f)
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 100:
		return 100
	}
	return int(math.Round(v))
}
