package types

import (
	"strings"
	"time"
)

// Category is the fixed fact taxonomy.
type Category string

const (
	CategoryPersonal      Category = "personal"
	CategoryPreferences   Category = "preferences"
	CategoryProfessional  Category = "professional"
	CategoryHealth        Category = "health"
	CategoryRelationships Category = "relationships"
	CategoryTechnology    Category = "technology"
	CategoryFinancial     Category = "financial"
	CategoryTravel        Category = "travel"
)

// Categories lists the taxonomy in prompt order.
var Categories = []Category{
	CategoryPersonal,
	CategoryPreferences,
	CategoryProfessional,
	CategoryHealth,
	CategoryRelationships,
	CategoryTechnology,
	CategoryFinancial,
	CategoryTravel,
}

// Confidence is the extractor's own estimate.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// ParseConfidence accepts High/Medium/Low in any case.
func ParseConfidence(s string) (Confidence, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return ConfidenceHigh, true
	case "medium":
		return ConfidenceMedium, true
	case "low":
		return ConfidenceLow, true
	default:
		return "", false
	}
}

// Fact is an immutable, owner-scoped personal statement.
type Fact struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	// Content is the full fact line as extracted, used for display and novelty checks.
	Content    string     `json:"content"`
	Label      string     `json:"label"`
	Detail     string     `json:"detail"`
	Category   Category   `json:"category"`
	Confidence Confidence `json:"confidence"`
	Embedding  []float32  `json:"-"` // embedding vectors, not serialized
	CreatedAt  time.Time  `json:"created_at"`
}

// ScoredFact pairs a fact with its cosine distance to a query vector.
// Distance is 1 - cos(a, b): 0 for identical direction, larger is less similar.
type ScoredFact struct {
	Fact     Fact
	Distance float64
}
