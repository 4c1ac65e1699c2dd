// Package prompt assembles the system prompt for the reply call.
package prompt

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/easeaico/recall/internal/types"
)

// BuildSystemPrompt returns the bare persona when no retrieval happened and
// the context prompt otherwise, even if the retrieved set is empty.
func BuildSystemPrompt(facts []string, retrieved bool) (string, error) {
	if !retrieved {
		return Persona, nil
	}

	lines := make([]string, 0, len(facts))
	for _, fact := range facts {
		if strings.TrimSpace(fact) != "" {
			lines = append(lines, fact)
		}
	}

	data := struct {
		Persona string
		Facts   []string
	}{
		Persona: Persona,
		Facts:   lines,
	}

	var buf bytes.Buffer
	if err := contextTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// FactContents 取出事实文本，按检索顺序。
func FactContents(facts []types.Fact) []string {
	contents := make([]string, 0, len(facts))
	for _, fact := range facts {
		contents = append(contents, fact.Content)
	}
	return contents
}
