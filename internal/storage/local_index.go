package storage

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/easeaico/recall/internal/types"
)

const ownerKey = "owner_id"

// LocalIndex is an embedded fact index on chromem-go. Each owner gets a
// collection of its own and every query also filters on owner_id metadata.
type LocalIndex struct {
	db          *chromem.DB
	dimensions  int
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

// NewLocalIndex opens an in-memory index, or a persistent one when path is set.
func NewLocalIndex(path string, dimensions int) (*LocalIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("local index needs positive dimensions, got %d", dimensions)
	}
	db := chromem.NewDB()
	if path != "" {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open local index at %s: %w", path, err)
		}
	}
	return &LocalIndex{
		db:          db,
		dimensions:  dimensions,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// collection returns the collection for ownerID, creating it on first use.
func (l *LocalIndex) collection(ownerID string) (*chromem.Collection, error) {
	l.mu.RLock()
	col, exists := l.collections[ownerID]
	l.mu.RUnlock()
	if exists {
		return col, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := l.collections[ownerID]; exists {
		return col, nil
	}
	col, err := l.db.GetOrCreateCollection("facts_"+ownerID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	l.collections[ownerID] = col
	return col, nil
}

func (l *LocalIndex) AddFact(ctx context.Context, fact types.Fact) error {
	if fact.OwnerID == "" {
		return fmt.Errorf("%w: fact has no owner", types.ErrIndexUnavailable)
	}
	if len(fact.Embedding) != l.dimensions {
		return fmt.Errorf("%w: fact %s has %d dimensions, index expects %d",
			types.ErrIndexUnavailable, fact.ID, len(fact.Embedding), l.dimensions)
	}
	col, err := l.collection(fact.OwnerID)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrIndexUnavailable, err)
	}

	doc := chromem.Document{
		ID:        fact.ID,
		Content:   fact.Content,
		Embedding: slices.Clone(fact.Embedding),
		Metadata: map[string]string{
			ownerKey:     fact.OwnerID,
			"label":      fact.Label,
			"detail":     fact.Detail,
			"category":   string(fact.Category),
			"confidence": string(fact.Confidence),
			"created_at": fact.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("%w: add document: %w", types.ErrIndexUnavailable, err)
	}
	return nil
}

func (l *LocalIndex) Nearest(ctx context.Context, ownerID string, embedding []float32, k int) ([]types.ScoredFact, error) {
	if len(embedding) == 0 || k <= 0 {
		return nil, nil
	}
	results, err := l.query(ctx, ownerID, embedding, k)
	if err != nil {
		return nil, err
	}

	scored := make([]types.ScoredFact, 0, len(results))
	for _, result := range results {
		scored = append(scored, types.ScoredFact{
			Fact:     factFromResult(result),
			Distance: 1 - float64(result.Similarity),
		})
	}
	return scored, nil
}

// ListFacts queries with a neutral unit vector, then orders by creation time.
func (l *LocalIndex) ListFacts(ctx context.Context, ownerID string, limit int) ([]types.Fact, error) {
	if limit <= 0 {
		return nil, nil
	}
	results, err := l.query(ctx, ownerID, l.neutralVector(), limit)
	if err != nil {
		return nil, err
	}

	facts := make([]types.Fact, 0, len(results))
	for _, result := range results {
		facts = append(facts, factFromResult(result))
	}
	slices.SortStableFunc(facts, func(a, b types.Fact) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return facts, nil
}

func (l *LocalIndex) query(ctx context.Context, ownerID string, embedding []float32, n int) ([]chromem.Result, error) {
	col, err := l.collection(ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrIndexUnavailable, err)
	}
	// chromem-go requires 0 < nResults <= collection size
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	n = min(n, count)

	results, err := col.QueryEmbedding(ctx, embedding, n, map[string]string{ownerKey: ownerID}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: chromem query: %w", types.ErrIndexUnavailable, err)
	}
	return results, nil
}

func (l *LocalIndex) neutralVector() []float32 {
	v := make([]float32, l.dimensions)
	c := float32(1 / math.Sqrt(float64(l.dimensions)))
	for i := range v {
		v[i] = c
	}
	return v
}

func factFromResult(result chromem.Result) types.Fact {
	createdAt, _ := time.Parse(time.RFC3339Nano, result.Metadata["created_at"])
	return types.Fact{
		ID:         result.ID,
		OwnerID:    result.Metadata[ownerKey],
		Content:    result.Content,
		Label:      result.Metadata["label"],
		Detail:     result.Metadata["detail"],
		Category:   types.Category(result.Metadata["category"]),
		Confidence: types.Confidence(result.Metadata["confidence"]),
		Embedding:  result.Embedding,
		CreatedAt:  createdAt,
	}
}
