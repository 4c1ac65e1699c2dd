package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/easeaico/recall/internal/types"
	"github.com/easeaico/recall/internal/utils"
)

// DefaultTitle is used when the model returns nothing usable.
const DefaultTitle = "New conversation"

const titlePrompt = `Your task is to give a title to the messages below.
Make the title 3-4 words long. Reply with the title only.`

var titleParams = GenerateParams{Temperature: 0.3, MaxTokens: 16}

// NameConversation asks the model for a short title summarizing messages.
func (g *Gateway) NameConversation(ctx context.Context, messages []types.Message) (string, error) {
	if len(messages) == 0 {
		return DefaultTitle, nil
	}

	var sb strings.Builder
	sb.WriteString("Messages:\n")
	for _, msg := range messages {
		fmt.Fprintf(&sb, "%s: %s\n", msg.Role, msg.Content)
	}

	raw, err := g.Complete(ctx, titlePrompt, []types.Message{{Role: types.RoleUser, Content: sb.String()}}, titleParams)
	if err != nil {
		return DefaultTitle, err
	}
	return CleanTitle(raw), nil
}

// CleanTitle keeps the first line, drops wrapping quotes, and removes " - "
// which separates the title from its timestamp in storage.
func CleanTitle(raw string) string {
	title := utils.StripWrapping(utils.FirstLine(raw))
	title = strings.TrimPrefix(title, "Title:")
	title = strings.ReplaceAll(title, " - ", " ")
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return DefaultTitle
	}
	return title
}
