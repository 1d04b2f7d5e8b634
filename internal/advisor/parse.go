package advisor

import (
	"strings"
	"unicode"
)

// DefaultScore is used when a match-score response cannot be parsed.
const DefaultScore = 75

// extractJSONBlock pulls the JSON payload out of a model response that may
// be wrapped in markdown code fences or surrounded by prose.
func extractJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if idx := strings.Index(text, "```json"); idx >= 0 {
		rest := text[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}

	// No fences: trim to the outermost bracket pair if one exists.
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return text
	}
	var closer byte = '}'
	if text[start] == '[' {
		closer = ']'
	}
	if end := strings.LastIndexByte(text, closer); end > start {
		return strings.TrimSpace(text[start : end+1])
	}
	return strings.TrimSpace(text[start:])
}

// parseScore extracts an integer score from free-form model output and
// clamps it to [0,100]. Unparseable responses yield DefaultScore.
func parseScore(text string) int {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(text) {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
			if digits.Len() >= 3 {
				break
			}
		} else if digits.Len() > 0 {
			break
		}
	}
	if digits.Len() == 0 {
		return DefaultScore
	}

	score := 0
	for _, r := range digits.String() {
		score = score*10 + int(r-'0')
	}
	return clampScore(score)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
