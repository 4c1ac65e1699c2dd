// Package retrieval decides per turn whether the user's stored facts are
// needed and fetches them when they are.
package retrieval

import (
	"fmt"
	"strings"

	"github.com/easeaico/recall/internal/types"
	"github.com/easeaico/recall/internal/utils"
)

const (
	tokenRetrieve = "RETRIEVE"
	tokenSkip     = "SKIP"
)

const policyPrompt = `Task: analyze the conversation and decide whether stored facts about the user are needed to answer the query.

RETRIEVE when:
- Answering requires additional information about the user:
  - Demographics: name, age, location, birthday
  - Preferences: likes and dislikes, habits, routines
  - Professional: job, education, skills, career goals
  - Health: allergies, conditions, medications, fitness
  - Relationships: family, friends, pets, relationship status
  - Tech: devices, apps, privacy preferences
  - Financial: budgets, goals, spending habits
  - Travel: frequent destinations, travel preferences
- The query refers to something the user said before ("as I mentioned before...") or to their personal history.
- The user explicitly asks about their own information.

SKIP when:
- General knowledge is enough to answer.
- The answer is already in the visible conversation.
- It is a follow-up to your previous response.
- The message already contains everything needed.
- It is a clarification or rephrasing.

Special cases:
- If uncertain, SKIP.
- Never retrieve for requests about sensitive information.

Respond with exactly one word: RETRIEVE or SKIP.`

// Decision is the decoded policy output.
type Decision int

const (
	// DecisionMalformed is any output other than the two tokens. It is a skip.
	DecisionMalformed Decision = iota
	DecisionSkip
	DecisionRetrieve
)

func (d Decision) String() string {
	switch d {
	case DecisionSkip:
		return "skip"
	case DecisionRetrieve:
		return "retrieve"
	default:
		return "malformed"
	}
}

// NeedsRetrieval reports whether facts should be fetched. Only an exact
// RETRIEVE opens the gate.
func (d Decision) NeedsRetrieval() bool {
	return d == DecisionRetrieve
}

// ParseDecision decodes the classifier output. Surrounding whitespace and one
// layer of quotes are tolerated; case and extra words are not.
func ParseDecision(raw string) Decision {
	switch utils.StripWrapping(raw) {
	case tokenRetrieve:
		return DecisionRetrieve
	case tokenSkip:
		return DecisionSkip
	default:
		return DecisionMalformed
	}
}

func buildPolicyInput(history []types.Message, query string) string {
	var sb strings.Builder
	sb.WriteString("Current conversation:\n")
	if len(history) == 0 {
		sb.WriteString("(empty)\n")
	}
	for _, msg := range history {
		fmt.Fprintf(&sb, "%s: %s\n", msg.Role, msg.Content)
	}
	sb.WriteString("\nQuery to analyze: ")
	sb.WriteString(query)
	return sb.String()
}
