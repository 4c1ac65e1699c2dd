// Package chat is the conversation orchestrator. A Session carries the
// per-user state that lives between login and logout.
package chat

import (
	"fmt"
	"slices"
	"sync"

	"github.com/easeaico/recall/internal/models"
	"github.com/easeaico/recall/internal/types"
)

// Session 是一次登录对应的显式会话上下文。
type Session struct {
	mu sync.Mutex

	ownerID        string
	conversationID string
	title          string
	messages       []types.Message
	params         models.GenerateParams
	closed         bool
}

func newSession(ownerID string, params models.GenerateParams) *Session {
	return &Session{ownerID: ownerID, params: params}
}

// OwnerID 返回会话所属用户。
func (s *Session) OwnerID() string {
	return s.ownerID
}

// ConversationID is empty until the first turn has been persisted.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Messages returns a copy of the visible conversation.
func (s *Session) Messages() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Params returns the reply-generation parameters.
func (s *Session) Params() models.GenerateParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// SetParams replaces the reply parameters after validation.
func (s *Session) SetParams(params models.GenerateParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrSessionClosed
	}
	s.params = params
	return nil
}

// Set updates one named parameter, e.g. Set("temperature", "0.2").
func (s *Session) Set(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrSessionClosed
	}
	params, err := s.params.With(name, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	s.params = params
	return nil
}

// Closed 表示会话是否已退出。
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// reset starts a fresh, unsaved conversation. Callers hold s.mu.
func (s *Session) reset() {
	s.conversationID = ""
	s.title = ""
	s.messages = nil
}
