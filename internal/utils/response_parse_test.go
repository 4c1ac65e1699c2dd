package utils

import (
	"testing"

	"google.golang.org/genai"
)

func TestStripWrapping(t *testing.T) {
	cases := map[string]string{
		"  RETRIEVE \n": "RETRIEVE",
		`"SKIP"`:        "SKIP",
		"`SKIP`":        "SKIP",
		"“RETRIEVE”":    "RETRIEVE",
		`"`:             `"`,
		`'mixed"`:       `'mixed"`,
	}
	for in, want := range cases {
		if got := StripWrapping(in); got != want {
			t.Fatalf("StripWrapping(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResponseLinesDropsFencesAndBlanks(t *testing.T) {
	raw := "```\n- Name: Alice (Confidence: High)\r\n\n   \n- Occupation: Engineer (Confidence: High)\n```"
	got := ResponseLines(raw)
	if len(got) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(got), got)
	}
	if got[1] != "- Occupation: Engineer (Confidence: High)" {
		t.Fatalf("unexpected second line: %q", got[1])
	}
}

func TestFirstLine(t *testing.T) {
	if got := FirstLine("\n\n  Weekend Trip Plans \nsecond"); got != "Weekend Trip Plans" {
		t.Fatalf("unexpected first line: %q", got)
	}
}

func TestExtractContentText(t *testing.T) {
	content := &genai.Content{Parts: []*genai.Part{{Text: "RE"}, nil, {Text: "TRIEVE"}}}
	if got := ExtractContentText(content); got != "RETRIEVE" {
		t.Fatalf("expected joined text, got %q", got)
	}
	if got := ExtractContentText(nil); got != "" {
		t.Fatalf("expected empty text for nil content, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo world", 5); got != "héllo..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected truncation: %q", got)
	}
}
