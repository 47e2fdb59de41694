package analysis

import (
	"strings"

	"github.com/src-d/enry/v2"
)

// PreprocessCode normalizes a submission before analysis: trailing
// whitespace is stripped from every line and blank lines are removed from
// the start and end. Interior structure is preserved so reported line
// numbers stay meaningful.
func PreprocessCode(code string) string {
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}

	start := 0
	for start < len(lines) && lines[start] == "" {
		start++
	}

	end := len(lines)
	for end > start && lines[end-1] == "" {
		end--
	}

	return strings.Join(lines[start:end], "\n")
}

// DetectLanguage guesses the language of a submission from its content.
// Returns the lowercased language name, or the empty string when detection
// is inconclusive.
func DetectLanguage(code string) string {
	lang := enry.GetLanguage("snippet", []byte(code))
	if lang == "" {
		return ""
	}

	return strings.ToLower(lang)
}
