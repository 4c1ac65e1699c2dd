package memory

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/easeaico/recall/internal/types"
	"github.com/easeaico/recall/internal/utils"
)

// NoFactsSentinel is the exact extractor output for "nothing qualifies".
const NoFactsSentinel = "No facts to extract."

const extractionPrompt = `Role: you are an information extraction specialist. Read the user's messages and identify ONLY permanent, verifiable facts the user states about themselves.

Categories:
1. Personal attributes: name, age, birth date, location.
2. Preferences and lifestyle: hobbies, likes and dislikes (food, activities, brands), daily habits and routines, entertainment (books, movies, music), shopping preferences.
3. Professional life: job title and employer, industry and specialization, work history and education, skills and certifications, career goals.
4. Health and wellness: allergies and dietary restrictions, medical conditions and medications, exercise and fitness routines, sleep patterns, health goals.
5. Relationships and social: family members, relationship status, close friends and colleagues, pets, important dates such as anniversaries and birthdays.
6. Technology and digital: preferred devices and platforms, frequently used apps and software, tech skill level, privacy preferences, social media usage.
7. Financial context: budgeting habits, financial goals, investment interests, spending patterns.
8. Travel and geography: frequent destinations, travel preferences (hotels, airlines), languages spoken, cultural interests, future travel plans.

Rules:
1. Extract only direct first-person statements ("I prefer X"), never general knowledge.
2. Do not extract facts about other people ("My friend likes X") or general observations.
3. Ignore vague statements ("I like it") unless they are specific.
4. Ignore feelings ("I feel happy") unless they state a fact.
5. Never infer or assume anything the user did not explicitly say.
6. Ignore temporary states ("I'm tired today") unless they are health related.
7. Write implied facts in explicit form: "I always order oat milk" becomes "- Preference: Oat milk in coffee (Confidence: Medium)".
8. Use this exact format, one fact per line:
- [Category]: [Fact detail] (Confidence: High/Medium/Low)

Good output:
- Name: Alice (Confidence: High)
- Dietary preference: Vegetarian (Confidence: Medium)
- Occupation: Software engineer (Confidence: High)

Rejected (never output these):
- The weather is nice today (not about the user)
- They talked about machine learning (not a personal fact)
- User seems tired (temporary state)

Output only the fact lines, with no other text, numbering, or quotation marks.
If there are no facts, return exactly: ` + NoFactsSentinel

// ExtractionKind tags how the extractor output was decoded.
type ExtractionKind int

const (
	ExtractionMalformed ExtractionKind = iota
	ExtractionNone
	ExtractionFound
)

func (k ExtractionKind) String() string {
	switch k {
	case ExtractionNone:
		return "none"
	case ExtractionFound:
		return "found"
	default:
		return "malformed"
	}
}

// Candidate is one parsed fact line.
type Candidate struct {
	Label      string
	Detail     string
	Category   types.Category
	Confidence types.Confidence
}

// Line renders the candidate in the canonical wire format.
func (c Candidate) Line() string {
	return fmt.Sprintf("- %s: %s (Confidence: %s)", c.Label, c.Detail, c.Confidence)
}

// Extraction is the decoded extractor response.
type Extraction struct {
	Kind       ExtractionKind
	Candidates []Candidate
	// Reason explains a Malformed decode.
	Reason string
}

var factLinePattern = regexp.MustCompile(`^-\s*([^:]+?)\s*:\s*(.+?)\s*\(\s*Confidence:\s*([A-Za-z]+)\s*\)$`)

// ParseExtraction decodes extractor output. Output is either the sentinel or
// nothing but well-formed fact lines; anything else is Malformed and yields no facts.
func ParseExtraction(raw string) Extraction {
	if utils.StripWrapping(raw) == NoFactsSentinel {
		return Extraction{Kind: ExtractionNone}
	}

	lines := utils.ResponseLines(raw)
	if len(lines) == 0 {
		return Extraction{Kind: ExtractionMalformed, Reason: "empty response"}
	}
	if len(lines) == 1 && utils.StripWrapping(lines[0]) == NoFactsSentinel {
		return Extraction{Kind: ExtractionNone}
	}

	candidates := make([]Candidate, 0, len(lines))
	for i, line := range lines {
		c, ok := ParseFactLine(line)
		if !ok {
			return Extraction{Kind: ExtractionMalformed, Reason: fmt.Sprintf("line %d does not match fact format: %q", i+1, utils.Truncate(line, 80))}
		}
		candidates = append(candidates, c)
	}
	return Extraction{Kind: ExtractionFound, Candidates: candidates}
}

// ParseFactLine parses a single "- Label: Detail (Confidence: X)" line.
func ParseFactLine(line string) (Candidate, bool) {
	m := factLinePattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Candidate{}, false
	}
	label := unwrapBrackets(m[1])
	detail := unwrapBrackets(m[2])
	confidence, ok := types.ParseConfidence(m[3])
	if !ok || label == "" || detail == "" || strings.ContainsAny(label, "[]") {
		return Candidate{}, false
	}
	return Candidate{
		Label:      label,
		Detail:     detail,
		Category:   CategoryForLabel(label),
		Confidence: confidence,
	}, true
}

// unwrapBrackets removes one "[...]" pair around the whole of s, the
// placeholder style of the prompt's format line. Brackets inside s are kept.
func unwrapBrackets(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']' {
		if inner := s[1 : len(s)-1]; !strings.ContainsAny(inner, "[]") {
			return strings.TrimSpace(inner)
		}
	}
	return s
}

func buildExtractionInput(userTexts []string) string {
	var sb strings.Builder
	sb.WriteString("User messages:\n")
	for _, text := range userTexts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		sb.WriteString("- ")
		sb.WriteString(strings.ReplaceAll(text, "\n", " "))
		sb.WriteString("\n")
	}
	return sb.String()
}
