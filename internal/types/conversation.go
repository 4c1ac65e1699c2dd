package types

import (
	"strings"
	"time"
)

// Role tags a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one role-tagged text record.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is an append-only message log owned by one user.
type Conversation struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserTexts returns the contents of user-authored messages in order.
func UserTexts(messages []Message) []string {
	texts := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleUser {
			texts = append(texts, msg.Content)
		}
	}
	return texts
}

// TitleTimeLayout is the timestamp suffix of stored conversation titles.
const TitleTimeLayout = "2006-01-02 15:04:05"

// DisplayTitle strips the " - <timestamp>" suffix added at creation.
func (c Conversation) DisplayTitle() string {
	if i := strings.LastIndex(c.Title, " - "); i > 0 {
		if _, err := time.Parse(TitleTimeLayout, c.Title[i+3:]); err == nil {
			return c.Title[:i]
		}
	}
	return c.Title
}
