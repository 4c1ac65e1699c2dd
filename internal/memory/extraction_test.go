package memory

import (
	"testing"

	"github.com/easeaico/recall/internal/types"
)

func TestParseExtractionSentinel(t *testing.T) {
	for _, raw := range []string{"No facts to extract.", "  No facts to extract.\n", "`No facts to extract.`", "```\nNo facts to extract.\n```"} {
		got := ParseExtraction(raw)
		if got.Kind != ExtractionNone || len(got.Candidates) != 0 {
			t.Fatalf("expected sentinel for %q, got %+v", raw, got)
		}
	}
}

func TestParseExtractionFacts(t *testing.T) {
	raw := "- Name: Alice (Confidence: High)\n" +
		"- Occupation: Software engineer (Confidence: High)\n" +
		"- Dietary preference: Vegetarian (Confidence: medium)\n"

	got := ParseExtraction(raw)
	if got.Kind != ExtractionFound {
		t.Fatalf("expected facts, got %v (%s)", got.Kind, got.Reason)
	}
	if len(got.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got.Candidates))
	}

	want := []struct {
		label    string
		detail   string
		category types.Category
	}{
		{"Name", "Alice", types.CategoryPersonal},
		{"Occupation", "Software engineer", types.CategoryProfessional},
		{"Dietary preference", "Vegetarian", types.CategoryHealth},
	}
	for i, w := range want {
		c := got.Candidates[i]
		if c.Label != w.label || c.Detail != w.detail || c.Category != w.category {
			t.Fatalf("candidate %d: expected %+v, got %+v", i, w, c)
		}
	}
	if got.Candidates[2].Confidence != types.ConfidenceMedium {
		t.Fatalf("expected normalized confidence, got %q", got.Candidates[2].Confidence)
	}
	if line := got.Candidates[2].Line(); line != "- Dietary preference: Vegetarian (Confidence: Medium)" {
		t.Fatalf("unexpected canonical line %q", line)
	}
}

func TestParseExtractionAcceptsBracketsAndParentheses(t *testing.T) {
	got := ParseExtraction("```\n- [Pet]: [Dog named Rex (a beagle)] (Confidence: High)\n```")
	if got.Kind != ExtractionFound {
		t.Fatalf("expected facts, got %v (%s)", got.Kind, got.Reason)
	}
	c := got.Candidates[0]
	if c.Label != "Pet" || c.Detail != "Dog named Rex (a beagle)" || c.Category != types.CategoryRelationships {
		t.Fatalf("unexpected candidate %+v", c)
	}
}

func TestParseFactLineKeepsInnerBrackets(t *testing.T) {
	cases := map[string]string{
		"- Tech: Uses [Neovim] (Confidence: High)":         "Uses [Neovim]",
		"- Tech: [Neovim] and [tmux] (Confidence: Medium)": "[Neovim] and [tmux]",
		"- [Tech]: [Uses Neovim] (Confidence: Low)":        "Uses Neovim",
	}
	for line, detail := range cases {
		c, ok := ParseFactLine(line)
		if !ok {
			t.Fatalf("expected %q to parse", line)
		}
		if c.Label != "Tech" || c.Detail != detail {
			t.Fatalf("expected Tech/%q for %q, got %+v", detail, line, c)
		}
	}

	line := "- Tech: Uses [Neovim] (Confidence: High)"
	c, _ := ParseFactLine(line)
	if c.Line() != line {
		t.Fatalf("expected canonical line %q, got %q", line, c.Line())
	}
}

func TestParseExtractionFailsClosed(t *testing.T) {
	cases := []string{
		"",
		"Here are the facts:\n- Name: Alice (Confidence: High)",
		"- Name: Alice",
		"- Name: Alice (Confidence: Certain)",
		"No facts found",
		"- Name: Alice (Confidence: High)\nNo facts to extract.",
		"- Na]me: Alice (Confidence: High)",
	}
	for _, raw := range cases {
		got := ParseExtraction(raw)
		if got.Kind != ExtractionMalformed || len(got.Candidates) != 0 {
			t.Fatalf("expected malformed for %q, got %+v", raw, got)
		}
	}
}

func TestCategoryForLabel(t *testing.T) {
	cases := map[string]types.Category{
		"Name":                          types.CategoryPersonal,
		"Location":                      types.CategoryPersonal,
		"Allergy":                       types.CategoryHealth,
		"Favorite food":                 types.CategoryPreferences,
		"Job title":                     types.CategoryProfessional,
		"Preferred device":              types.CategoryTechnology,
		"Favorite programming language": types.CategoryTechnology,
		"Investment interests":          types.CategoryFinancial,
		"Languages spoken":              types.CategoryTravel,
		"Spouse":                        types.CategoryRelationships,
		"Hobby":                         types.CategoryPreferences,
	}
	for label, want := range cases {
		if got := CategoryForLabel(label); got != want {
			t.Fatalf("CategoryForLabel(%q) = %q, want %q", label, got, want)
		}
	}
}

func TestBuildExtractionInputSkipsBlankMessages(t *testing.T) {
	got := buildExtractionInput([]string{"I'm a vegetarian", "  ", "I live in\nLisbon"})
	want := "User messages:\n- I'm a vegetarian\n- I live in Lisbon\n"
	if got != want {
		t.Fatalf("unexpected input %q", got)
	}
}
