package advisor

import "testing"

func TestExtractJSONBlock(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"json fence",
			"Here you go:\n```json\n{\"a\": 1}\n```\nHope that helps!",
			`{"a": 1}`,
		},
		{
			"bare fence",
			"```\n[{\"a\": 1}]\n```",
			`[{"a": 1}]`,
		},
		{
			"unterminated fence",
			"```json\n{\"a\": 1}",
			`{"a": 1}`,
		},
		{
			"no fence object",
			"The result is {\"a\": 1} as requested.",
			`{"a": 1}`,
		},
		{
			"no fence array",
			"Sure: [1, 2, 3] there.",
			`[1, 2, 3]`,
		},
		{
			"plain text",
			"no json here",
			"no json here",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractJSONBlock(tc.in); got != tc.want {
				t.Fatalf("extractJSONBlock = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseScore(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{"bare number", "85", 85},
		{"number with prose", "Score: 72", 72},
		{"trailing prose", "90 out of 100", 90},
		{"zero", "0", 0},
		{"hundred", "100", 100},
		{"clamped above", "250", 100},
		{"no digits", "excellent match", DefaultScore},
		{"empty", "", DefaultScore},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseScore(tc.in); got != tc.want {
				t.Fatalf("parseScore(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestNeutralSentimentDefaults(t *testing.T) {
	report := NeutralSentiment("")
	if report.OverallSentiment != "neutral" {
		t.Fatalf("sentiment = %q, want neutral", report.OverallSentiment)
	}
	if report.Confidence != 0.5 {
		t.Fatalf("confidence = %v, want 0.5", report.Confidence)
	}
	if report.FinancialHealth != "stable" {
		t.Fatalf("financial health = %q, want stable", report.FinancialHealth)
	}
	if report.Explanation == "" {
		t.Fatalf("expected a default explanation")
	}

	custom := NeutralSentiment("rate limited")
	if custom.Explanation != "rate limited" {
		t.Fatalf("explanation = %q", custom.Explanation)
	}
}
