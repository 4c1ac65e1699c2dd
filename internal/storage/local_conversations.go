package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/easeaico/recall/internal/types"
)

// LocalConversations 是进程内的会话存储，供 local 后端使用。
type LocalConversations struct {
	mu      sync.RWMutex
	byOwner map[string]map[string]*types.Conversation
	nowFunc func() time.Time
}

// NewLocalConversations returns an empty store.
func NewLocalConversations() *LocalConversations {
	return &LocalConversations{
		byOwner: make(map[string]map[string]*types.Conversation),
		nowFunc: time.Now,
	}
}

func (s *LocalConversations) FetchAll(_ context.Context, ownerID string) ([]types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convs := s.byOwner[ownerID]
	results := make([]types.Conversation, 0, len(convs))
	for _, conv := range convs {
		results = append(results, cloneConversation(conv))
	}
	slices.SortFunc(results, func(a, b types.Conversation) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return results, nil
}

func (s *LocalConversations) Get(_ context.Context, ownerID, id string) (types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.byOwner[ownerID][id]
	if !ok {
		return types.Conversation{}, fmt.Errorf("%w: %s", types.ErrConversationNotFound, id)
	}
	return cloneConversation(conv), nil
}

func (s *LocalConversations) Create(_ context.Context, ownerID string, messages []types.Message, titleSeed string) (types.Conversation, error) {
	now := s.nowFunc()
	conv := &types.Conversation{
		ID:        newConversationID(ownerID),
		OwnerID:   ownerID,
		Title:     conversationTitle(titleSeed, now),
		Messages:  copyMessages(messages),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byOwner[ownerID] == nil {
		s.byOwner[ownerID] = make(map[string]*types.Conversation)
	}
	s.byOwner[ownerID][conv.ID] = conv
	return cloneConversation(conv), nil
}

func (s *LocalConversations) Save(_ context.Context, ownerID, id string, messages []types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byOwner[ownerID][id]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrConversationNotFound, id)
	}
	conv.Messages = copyMessages(messages)
	conv.UpdatedAt = s.nowFunc()
	return nil
}

func cloneConversation(conv *types.Conversation) types.Conversation {
	out := *conv
	out.Messages = copyMessages(conv.Messages)
	return out
}
