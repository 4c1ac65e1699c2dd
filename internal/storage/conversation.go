package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/easeaico/recall/internal/types"
)

// DefaultTitleSeed 在没有可用标题时使用。
const DefaultTitleSeed = "New conversation"

// newConversationID 生成 {owner}_{uuid} 形式的会话 ID。
func newConversationID(ownerID string) string {
	return ownerID + "_" + uuid.NewString()
}

// conversationTitle 在标题后追加创建时间。
func conversationTitle(seed string, now time.Time) string {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		seed = DefaultTitleSeed
	}
	return fmt.Sprintf("%s - %s", seed, now.Format(types.TitleTimeLayout))
}

func copyMessages(messages []types.Message) []types.Message {
	if len(messages) == 0 {
		return []types.Message{}
	}
	out := make([]types.Message, len(messages))
	copy(out, messages)
	return out
}

// marshalJSON encodes a value into JSONB, returning nil for empty values.
func marshalJSON(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func unmarshalJSON(data json.RawMessage, target any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, target)
}
