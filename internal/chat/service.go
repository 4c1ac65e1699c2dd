package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/easeaico/recall/internal/memory"
	"github.com/easeaico/recall/internal/models"
	"github.com/easeaico/recall/internal/prompt"
	"github.com/easeaico/recall/internal/retrieval"
	"github.com/easeaico/recall/internal/types"
)

var (
	// ErrNoOwner is returned by Login without an owner id.
	ErrNoOwner = errors.New("owner id is required")
	// ErrEmptyInput is returned for a blank user turn.
	ErrEmptyInput = errors.New("empty user input")
)

// Assistant 是回复生成与会话命名能力，由 models.Gateway 实现。
type Assistant interface {
	Complete(ctx context.Context, systemPrompt string, conversation []types.Message, params models.GenerateParams) (string, error)
	Stream(ctx context.Context, systemPrompt string, conversation []types.Message, params models.GenerateParams, onDelta func(string)) (string, error)
	NameConversation(ctx context.Context, messages []types.Message) (string, error)
}

// Retriever runs the per-turn retrieval gate, implemented by retrieval.Engine.
type Retriever interface {
	Run(ctx context.Context, ownerID string, history []types.Message, query string) *retrieval.State
}

// Curator mines and lists facts, implemented by memory.Curator.
type Curator interface {
	Curate(ctx context.Context, ownerID string, userTexts []string) (memory.CurationReport, error)
	GetAll(ctx context.Context, ownerID string) ([]types.Fact, error)
}

// ConversationStore persists conversations per owner.
type ConversationStore interface {
	FetchAll(ctx context.Context, ownerID string) ([]types.Conversation, error)
	Get(ctx context.Context, ownerID, id string) (types.Conversation, error)
	Create(ctx context.Context, ownerID string, messages []types.Message, titleSeed string) (types.Conversation, error)
	Save(ctx context.Context, ownerID, id string, messages []types.Message) error
}

// TurnResult is the outcome of one user turn.
type TurnResult struct {
	Reply        string
	SystemPrompt string
	Retrieval    *retrieval.State
	// SaveErr reports a persistence failure; the turn itself succeeded.
	SaveErr error
}

// Service wires the engines, the gateway, and the conversation store.
type Service struct {
	assistant     Assistant
	retriever     Retriever
	curator       Curator
	conversations ConversationStore
	defaultParams models.GenerateParams
	storeTimeout  time.Duration
}

// NewService creates a Service. Sessions start with models.DefaultReplyParams.
// storeTimeout bounds each conversation store call; <= 0 uses 30s.
func NewService(assistant Assistant, retriever Retriever, curator Curator, conversations ConversationStore, storeTimeout time.Duration) *Service {
	if storeTimeout <= 0 {
		storeTimeout = 30 * time.Second
	}
	return &Service{
		assistant:     assistant,
		retriever:     retriever,
		curator:       curator,
		conversations: conversations,
		defaultParams: models.DefaultReplyParams(),
		storeTimeout:  storeTimeout,
	}
}

func (s *Service) storeCall(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// Login opens a session for ownerID with an empty conversation.
func (s *Service) Login(ownerID string) (*Session, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrNoOwner
	}
	slog.Info("session opened", "owner_id", ownerID)
	return newSession(ownerID, s.defaultParams), nil
}

// Logout destroys the session state. Further calls return types.ErrSessionClosed.
func (s *Service) Logout(sess *Session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return
	}
	sess.reset()
	sess.closed = true
	slog.Info("session closed", "owner_id", sess.ownerID)
}

// Turn answers one user message. onDelta, when set, receives streamed text.
// Messages are appended only after a successful reply.
func (s *Service) Turn(ctx context.Context, sess *Session, input string, onDelta func(string)) (TurnResult, error) {
	if strings.TrimSpace(input) == "" {
		return TurnResult{}, ErrEmptyInput
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return TurnResult{}, types.ErrSessionClosed
	}

	state := s.retriever.Run(ctx, sess.ownerID, slices.Clone(sess.messages), input)
	systemPrompt, err := prompt.BuildSystemPrompt(prompt.FactContents(state.Facts), state.NeedsRetrieval())
	if err != nil {
		return TurnResult{Retrieval: state}, err
	}
	result := TurnResult{SystemPrompt: systemPrompt, Retrieval: state}

	conversation := append(slices.Clone(sess.messages), types.Message{Role: types.RoleUser, Content: input})
	var reply string
	if onDelta != nil {
		reply, err = s.assistant.Stream(ctx, systemPrompt, conversation, sess.params, onDelta)
	} else {
		reply, err = s.assistant.Complete(ctx, systemPrompt, conversation, sess.params)
	}
	if err != nil {
		return result, fmt.Errorf("failed to generate reply: %w", err)
	}

	sess.messages = append(conversation, types.Message{Role: types.RoleAssistant, Content: reply})
	result.Reply = reply
	result.SaveErr = s.persist(ctx, sess)
	if result.SaveErr != nil {
		slog.Warn("failed to save conversation", "owner_id", sess.ownerID, "error", result.SaveErr)
	}
	return result, nil
}

// persist creates the conversation on first save. Callers hold sess.mu.
func (s *Service) persist(ctx context.Context, sess *Session) error {
	if sess.conversationID == "" {
		title, err := s.assistant.NameConversation(ctx, sess.messages)
		if err != nil {
			slog.Warn("failed to name conversation", "owner_id", sess.ownerID, "error", err)
		}
		createCtx, cancel := s.storeCall(ctx)
		conv, err := s.conversations.Create(createCtx, sess.ownerID, nil, title)
		cancel()
		if err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		sess.conversationID = conv.ID
		sess.title = conv.Title
	}
	saveCtx, cancel := s.storeCall(ctx)
	defer cancel()
	if err := s.conversations.Save(saveCtx, sess.ownerID, sess.conversationID, sess.messages); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// ExtractFacts curates the user messages of the visible conversation.
func (s *Service) ExtractFacts(ctx context.Context, sess *Session) (memory.CurationReport, error) {
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return memory.CurationReport{}, types.ErrSessionClosed
	}
	messages := slices.Clone(sess.messages)
	sess.mu.Unlock()

	if len(messages) == 0 {
		return memory.CurationReport{}, types.ErrNoMessages
	}
	return s.curator.Curate(ctx, sess.ownerID, types.UserTexts(messages))
}

// Facts lists what is stored about the session owner.
func (s *Service) Facts(ctx context.Context, sess *Session) ([]types.Fact, error) {
	if sess.Closed() {
		return nil, types.ErrSessionClosed
	}
	return s.curator.GetAll(ctx, sess.ownerID)
}

// Conversations lists the owner's saved conversations, newest first.
func (s *Service) Conversations(ctx context.Context, sess *Session) ([]types.Conversation, error) {
	if sess.Closed() {
		return nil, types.ErrSessionClosed
	}
	ctx, cancel := s.storeCall(ctx)
	defer cancel()
	return s.conversations.FetchAll(ctx, sess.ownerID)
}

// LoadConversation replaces the visible conversation with a saved one.
func (s *Service) LoadConversation(ctx context.Context, sess *Session, id string) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return types.ErrSessionClosed
	}
	getCtx, cancel := s.storeCall(ctx)
	conv, err := s.conversations.Get(getCtx, sess.ownerID, id)
	cancel()
	if err != nil {
		return err
	}
	sess.conversationID = conv.ID
	sess.title = conv.Title
	sess.messages = slices.Clone(conv.Messages)
	return nil
}

// NewConversation clears the visible conversation; it is saved on the next turn.
func (s *Service) NewConversation(sess *Session) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return types.ErrSessionClosed
	}
	sess.reset()
	return nil
}
