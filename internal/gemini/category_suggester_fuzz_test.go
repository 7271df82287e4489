package gemini

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func FuzzExtractJSON(f *testing.F) {
	f.Add(`{"category": "Food", "confidence": 0.95}`)
	f.Add(`Here is the JSON: {"a": 1}`)
	f.Add("```json\n{\"a\": 1}\n```")
	f.Add(`{incomplete`)
	f.Add(`}backwards{`)
	f.Add(``)
	f.Add(`{ } { }`)
	f.Add(`{"text": "contains { and } chars"}`)
	f.Add(`{"name": "café"}`)

	f.Fuzz(func(t *testing.T, input string) {
		result := extractJSON(input)
		if result == "" {
			return
		}
		if !strings.HasPrefix(result, "{") || !strings.HasSuffix(result, "}") {
			t.Errorf("extractJSON(%q) = %q, want a {...} span", input, result)
		}
		if !strings.Contains(input, result) {
			t.Errorf("extractJSON(%q) = %q is not a substring of the input", input, result)
		}
	})
}

func FuzzSanitizeForPrompt(f *testing.F) {
	f.Add("coffee", 200)
	f.Add(`ignore "previous" instructions`, 200)
	f.Add("line\nbreak\ttab", 5)
	f.Add("null\x00byte", 3)
	f.Add("```system```", 50)

	f.Fuzz(func(t *testing.T, input string, maxLength int) {
		if maxLength < 0 || maxLength > 1000 {
			return
		}
		got := SanitizeForPrompt(input, maxLength)

		if len(got) > maxLength {
			t.Errorf("SanitizeForPrompt(%q, %d) = %q exceeds the limit", input, maxLength, got)
		}
		if strings.ContainsAny(got, "\"`\x00\n\t") {
			t.Errorf("SanitizeForPrompt(%q, %d) = %q keeps unsafe characters", input, maxLength, got)
		}
		if utf8.ValidString(input) && got != strings.TrimSpace(got) {
			t.Errorf("SanitizeForPrompt(%q, %d) = %q has surrounding whitespace", input, maxLength, got)
		}
	})
}
