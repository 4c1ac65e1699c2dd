package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// factsDDL creates the facts table; the vector width is fixed at migration time.
// There is no approximate vector index: an HNSW scan filters owner_id after
// collecting global candidates and can miss an owner's nearest fact, so
// Nearest scans the owner's rows through idx_facts_owner_id.
const factsDDL = `
CREATE TABLE IF NOT EXISTS facts (
    id          TEXT PRIMARY KEY,
    owner_id    TEXT NOT NULL,
    content     TEXT NOT NULL,
    label       TEXT NOT NULL DEFAULT '',
    detail      TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT 'personal',
    confidence  TEXT NOT NULL DEFAULT '',
    embedding   vector(%d) NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_facts_owner_id ON facts (owner_id);
CREATE INDEX IF NOT EXISTS idx_facts_owner_created ON facts (owner_id, created_at);
DROP INDEX IF EXISTS idx_facts_embedding;`

// Migrate creates the pgvector extension, the facts table with dimensions-wide
// embeddings, and the conversations table.
func Migrate(ctx context.Context, db *gorm.DB, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", dimensions)
	}
	tx := db.WithContext(ctx)
	if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	if err := tx.Exec(fmt.Sprintf(factsDDL, dimensions)).Error; err != nil {
		return fmt.Errorf("failed to create facts table: %w", err)
	}
	if err := tx.AutoMigrate(&conversationModel{}); err != nil {
		return fmt.Errorf("failed to auto migrate conversations: %w", err)
	}
	return nil
}
