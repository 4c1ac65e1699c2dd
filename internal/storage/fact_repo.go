package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/easeaico/recall/internal/types"
)

// factModel maps to the facts table. Embedding is compared with the cosine
// distance operator <=>.
type factModel struct {
	ID         string `gorm:"primaryKey"`
	OwnerID    string `gorm:"index"`
	Content    string
	Label      string
	Detail     string
	Category   string
	Confidence string
	Embedding  *pgvector.Vector `gorm:"type:vector"`
	CreatedAt  time.Time
}

func (factModel) TableName() string {
	return "facts"
}

// nearestRow is one row of the nearest-neighbor query.
type nearestRow struct {
	ID         string
	OwnerID    string
	Content    string
	Label      string
	Detail     string
	Category   string
	Confidence string
	CreatedAt  time.Time
	Distance   float64
}

// FactRepo is the pgvector fact index. Every query filters by owner_id.
type FactRepo struct {
	db *gorm.DB
}

// NewFactRepo returns a FactRepo.
func NewFactRepo(db *gorm.DB) *FactRepo {
	return &FactRepo{db: db}
}

func (r *FactRepo) AddFact(ctx context.Context, fact types.Fact) error {
	if fact.OwnerID == "" {
		return fmt.Errorf("%w: fact has no owner", types.ErrIndexUnavailable)
	}
	if len(fact.Embedding) == 0 {
		return fmt.Errorf("%w: fact %s has no embedding", types.ErrIndexUnavailable, fact.ID)
	}
	vector := pgvector.NewVector(fact.Embedding)
	record := factModel{
		ID:         fact.ID,
		OwnerID:    fact.OwnerID,
		Content:    fact.Content,
		Label:      fact.Label,
		Detail:     fact.Detail,
		Category:   string(fact.Category),
		Confidence: string(fact.Confidence),
		Embedding:  &vector,
		CreatedAt:  fact.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("%w: failed to insert fact: %w", types.ErrIndexUnavailable, err)
	}
	return nil
}

// nearestQuery ranks one owner's facts by exact cosine distance.
const nearestQuery = `
		SELECT id, owner_id, content, label, detail, category, confidence, created_at,
		       embedding <=> ? AS distance
		FROM facts
		WHERE owner_id = ?
		  AND embedding IS NOT NULL
		ORDER BY distance ASC
		LIMIT ?`

func (r *FactRepo) Nearest(ctx context.Context, ownerID string, embedding []float32, k int) ([]types.ScoredFact, error) {
	if len(embedding) == 0 || k <= 0 {
		return nil, nil
	}

	var rows []nearestRow
	if err := r.db.WithContext(ctx).
		Raw(nearestQuery, pgvector.NewVector(embedding), ownerID, k).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to search facts: %w", types.ErrIndexUnavailable, err)
	}

	results := make([]types.ScoredFact, 0, len(rows))
	for _, row := range rows {
		results = append(results, types.ScoredFact{
			Fact: types.Fact{
				ID:         row.ID,
				OwnerID:    row.OwnerID,
				Content:    row.Content,
				Label:      row.Label,
				Detail:     row.Detail,
				Category:   types.Category(row.Category),
				Confidence: types.Confidence(row.Confidence),
				CreatedAt:  row.CreatedAt,
			},
			Distance: row.Distance,
		})
	}
	return results, nil
}

func (r *FactRepo) ListFacts(ctx context.Context, ownerID string, limit int) ([]types.Fact, error) {
	if limit <= 0 {
		return nil, nil
	}
	var records []factModel
	if err := r.db.WithContext(ctx).
		Omit("embedding").
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to list facts: %w", types.ErrIndexUnavailable, err)
	}

	results := make([]types.Fact, 0, len(records))
	for _, record := range records {
		results = append(results, factFromModel(record))
	}
	return results, nil
}

func factFromModel(model factModel) types.Fact {
	fact := types.Fact{
		ID:         model.ID,
		OwnerID:    model.OwnerID,
		Content:    model.Content,
		Label:      model.Label,
		Detail:     model.Detail,
		Category:   types.Category(model.Category),
		Confidence: types.Confidence(model.Confidence),
		CreatedAt:  model.CreatedAt,
	}
	if model.Embedding != nil {
		fact.Embedding = model.Embedding.Slice()
	}
	return fact
}
