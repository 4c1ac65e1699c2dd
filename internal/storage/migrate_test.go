package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFactsSchemaKeepsNearestExact(t *testing.T) {
	sqlFile, err := os.ReadFile(filepath.Join("..", "..", "migrations", "001_init.sql"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	schemas := map[string]string{
		"Migrate":      factsDDL,
		"001_init.sql": string(sqlFile),
	}
	for name, ddl := range schemas {
		lower := strings.ToLower(ddl)
		if strings.Contains(lower, "using hnsw") || strings.Contains(lower, "using ivfflat") {
			t.Fatalf("%s: expected no approximate vector index", name)
		}
		if !strings.Contains(ddl, "DROP INDEX IF EXISTS idx_facts_embedding") {
			t.Fatalf("%s: expected the old vector index to be dropped", name)
		}
		if !strings.Contains(ddl, "idx_facts_owner_id ON facts (owner_id)") {
			t.Fatalf("%s: expected the owner index", name)
		}
	}
	if !strings.Contains(nearestQuery, "WHERE owner_id = ?") || !strings.Contains(nearestQuery, "ORDER BY distance ASC") {
		t.Fatalf("expected owner-filtered exact ranking, got %s", nearestQuery)
	}
}
