package types

import "testing"

func TestUserTextsKeepsOrderAndRole(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Content: "I live in Lisbon"},
		{Role: RoleAssistant, Content: "Nice city"},
		{Role: RoleSystem, Content: "ignored"},
		{Role: RoleUser, Content: "I have a dog"},
	}
	got := UserTexts(msgs)
	if len(got) != 2 || got[0] != "I live in Lisbon" || got[1] != "I have a dog" {
		t.Fatalf("unexpected user texts: %v", got)
	}
}

func TestParseConfidence(t *testing.T) {
	cases := map[string]Confidence{"High": ConfidenceHigh, " medium ": ConfidenceMedium, "LOW": ConfidenceLow}
	for in, want := range cases {
		got, ok := ParseConfidence(in)
		if !ok || got != want {
			t.Fatalf("ParseConfidence(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseConfidence("certain"); ok {
		t.Fatalf("expected unknown confidence to be rejected")
	}
}

func TestDisplayTitle(t *testing.T) {
	cases := map[string]string{
		"Trip planning - 2026-10-14 09:30:00":        "Trip planning",
		"Pre-trip - checklist - 2026-10-14 09:30:00": "Pre-trip - checklist",
		"No timestamp - here":                        "No timestamp - here",
		"Plain":                                      "Plain",
	}
	for title, want := range cases {
		if got := (Conversation{Title: title}).DisplayTitle(); got != want {
			t.Fatalf("DisplayTitle(%q) = %q, want %q", title, got, want)
		}
	}
}
