package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/easeaico/recall/internal/types"
)

// conversationModel maps to the conversations table.
type conversationModel struct {
	ID        string `gorm:"primaryKey"`
	OwnerID   string `gorm:"index"`
	Title     string
	Messages  json.RawMessage `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (conversationModel) TableName() string {
	return "conversations"
}

// ConversationRepo accesses conversations scoped by owner.
type ConversationRepo struct {
	db      *gorm.DB
	nowFunc func() time.Time
}

// NewConversationRepo returns a ConversationRepo.
func NewConversationRepo(db *gorm.DB) *ConversationRepo {
	return &ConversationRepo{db: db, nowFunc: time.Now}
}

// FetchAll returns every conversation of ownerID, most recently updated first.
func (r *ConversationRepo) FetchAll(ctx context.Context, ownerID string) ([]types.Conversation, error) {
	var records []conversationModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}

	results := make([]types.Conversation, 0, len(records))
	for _, record := range records {
		conv, err := conversationFromModel(record)
		if err != nil {
			return nil, err
		}
		results = append(results, conv)
	}
	return results, nil
}

// Get loads one conversation; another owner's id reads as not found.
func (r *ConversationRepo) Get(ctx context.Context, ownerID, id string) (types.Conversation, error) {
	var record conversationModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Conversation{}, fmt.Errorf("%w: %s", types.ErrConversationNotFound, id)
	}
	if err != nil {
		return types.Conversation{}, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conversationFromModel(record)
}

// Create inserts a conversation with a generated id and a timestamped title.
func (r *ConversationRepo) Create(ctx context.Context, ownerID string, messages []types.Message, titleSeed string) (types.Conversation, error) {
	raw, err := marshalJSON(copyMessages(messages))
	if err != nil {
		return types.Conversation{}, fmt.Errorf("failed to encode messages: %w", err)
	}
	now := r.nowFunc()
	record := conversationModel{
		ID:        newConversationID(ownerID),
		OwnerID:   ownerID,
		Title:     conversationTitle(titleSeed, now),
		Messages:  raw,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return types.Conversation{}, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return conversationFromModel(record)
}

// Save replaces the message log of an existing conversation.
func (r *ConversationRepo) Save(ctx context.Context, ownerID, id string, messages []types.Message) error {
	raw, err := marshalJSON(copyMessages(messages))
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}
	result := r.db.WithContext(ctx).
		Model(&conversationModel{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(map[string]any{
			"messages":   raw,
			"updated_at": r.nowFunc(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save conversation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", types.ErrConversationNotFound, id)
	}
	return nil
}

func conversationFromModel(model conversationModel) (types.Conversation, error) {
	var messages []types.Message
	if err := unmarshalJSON(model.Messages, &messages); err != nil {
		return types.Conversation{}, fmt.Errorf("failed to decode messages of %s: %w", model.ID, err)
	}
	return types.Conversation{
		ID:        model.ID,
		OwnerID:   model.OwnerID,
		Title:     model.Title,
		Messages:  messages,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}
