package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/easeaico/recall/internal/models"
	"github.com/easeaico/recall/internal/types"
	"github.com/easeaico/recall/internal/utils"
)

const (
	// DefaultNoveltyThreshold is a cosine distance: a nearest neighbour farther than this is new.
	DefaultNoveltyThreshold = 0.1
	// DefaultDisplayLimit caps GetAll.
	DefaultDisplayLimit = 100
	// DefaultCallTimeout bounds each embedding and index call.
	DefaultCallTimeout = 30 * time.Second
)

// Completer 是 Curator 依赖的补全能力，由 models.Gateway 实现。
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, conversation []types.Message, params models.GenerateParams) (string, error)
}

// FactIndex 是按 owner 隔离的事实向量索引。实现必须在每次读写时按 ownerID 过滤。
type FactIndex interface {
	AddFact(ctx context.Context, fact types.Fact) error
	// Nearest returns up to k facts of ownerID ordered by ascending cosine distance.
	Nearest(ctx context.Context, ownerID string, embedding []float32, k int) ([]types.ScoredFact, error)
	// ListFacts returns up to limit facts of ownerID in no particular ranking.
	ListFacts(ctx context.Context, ownerID string, limit int) ([]types.Fact, error)
}

// CurationReport summarizes one Curate call.
type CurationReport struct {
	Extraction ExtractionKind
	Candidates []Candidate
	Stored     []types.Fact
	// Known are candidate lines dropped because an equivalent fact is on file.
	Known []string
	// Failed are novel candidate lines whose write failed.
	Failed []string
}

// NothingNew is the aggregate "information already saved / no facts" signal.
func (r CurationReport) NothingNew() bool {
	return len(r.Stored) == 0 && len(r.Failed) == 0
}

// Curator 实现记忆整理流程：抽取、新颖性过滤、写入。
type Curator struct {
	completer    Completer
	embedder     Embedder
	index        FactIndex
	threshold    float64
	displayLimit int
	timeout      time.Duration
	locks        *ownerLocks
	now          func() time.Time
	newID        func() string
}

// NewCurator 创建 Curator。threshold、displayLimit 与 timeout 非正时使用默认值。
// timeout 作用于每一次 embedding 与索引调用，模型调用由 Gateway 自行限时。
func NewCurator(completer Completer, embedder Embedder, index FactIndex, threshold float64, displayLimit int, timeout time.Duration) *Curator {
	if threshold <= 0 {
		threshold = DefaultNoveltyThreshold
	}
	if displayLimit <= 0 {
		displayLimit = DefaultDisplayLimit
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Curator{
		completer:    completer,
		embedder:     embedder,
		index:        index,
		threshold:    threshold,
		displayLimit: displayLimit,
		timeout:      timeout,
		locks:        newOwnerLocks(),
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Extract 调用模型抽取事实。模型不可用时返回错误；输出格式不合法时返回 Malformed 且不带事实。
func (c *Curator) Extract(ctx context.Context, userTexts []string) (Extraction, error) {
	input := buildExtractionInput(userTexts)
	if strings.TrimSpace(strings.TrimPrefix(input, "User messages:\n")) == "" {
		return Extraction{Kind: ExtractionNone}, nil
	}

	raw, err := c.completer.Complete(ctx, extractionPrompt, []types.Message{{Role: types.RoleUser, Content: input}}, models.Deterministic())
	if err != nil {
		return Extraction{}, fmt.Errorf("failed to extract facts: %w", err)
	}

	result := ParseExtraction(raw)
	if result.Kind == ExtractionMalformed {
		slog.Warn("malformed extraction response, treating as no facts", "reason", result.Reason, "raw", utils.Truncate(raw, 200))
	}
	return result, nil
}

// IsNew 判断 factText 对 ownerID 是否是新信息。索引为空时恒为 true。
func (c *Curator) IsNew(ctx context.Context, ownerID, factText string) (bool, error) {
	unlock := c.locks.Lock(ownerID)
	defer unlock()

	vecs, err := c.embed(ctx, []string{factText})
	if err != nil {
		return false, types.IndexError("failed to embed fact", err)
	}
	isNew, _, err := c.isNewVector(ctx, ownerID, vecs[0])
	return isNew, err
}

// call derives the context of one embedding or index call.
func (c *Curator) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Curator) embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := c.call(ctx)
	defer cancel()
	vecs, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}

func (c *Curator) addFact(ctx context.Context, fact types.Fact) error {
	ctx, cancel := c.call(ctx)
	defer cancel()
	if err := c.index.AddFact(ctx, fact); err != nil {
		return types.IndexError("failed to add fact", err)
	}
	return nil
}

func (c *Curator) isNewVector(ctx context.Context, ownerID string, vec []float32) (bool, *types.ScoredFact, error) {
	ctx, cancel := c.call(ctx)
	defer cancel()
	neighbours, err := c.index.Nearest(ctx, ownerID, vec, 1)
	if err != nil {
		return false, nil, types.IndexError("failed to search nearest fact", err)
	}
	if len(neighbours) == 0 {
		return true, nil, nil
	}
	nearest := neighbours[0]
	return nearest.Distance > c.threshold, &nearest, nil
}

// Store 为每条事实写入一个文档。写入彼此独立，失败的条目汇总为错误返回。
// 与 Curate 共用 owner 锁。
func (c *Curator) Store(ctx context.Context, ownerID string, facts []string) ([]types.Fact, error) {
	if len(facts) == 0 {
		return nil, nil
	}
	unlock := c.locks.Lock(ownerID)
	defer unlock()

	vecs, err := c.embed(ctx, facts)
	if err != nil {
		return nil, types.IndexError("failed to embed facts", err)
	}

	stored := make([]types.Fact, 0, len(facts))
	var errs []error
	for i, line := range facts {
		fact := c.newFact(ownerID, line, vecs[i])
		if err := c.addFact(ctx, fact); err != nil {
			slog.Error("failed to store fact", "owner_id", ownerID, "error", err)
			errs = append(errs, fmt.Errorf("store %q: %w", utils.Truncate(line, 60), err))
			continue
		}
		stored = append(stored, fact)
	}
	return stored, errors.Join(errs...)
}

// GetAll 返回 ownerID 的事实，用于展示，不保证排序。
func (c *Curator) GetAll(ctx context.Context, ownerID string) ([]types.Fact, error) {
	ctx, cancel := c.call(ctx)
	defer cancel()
	facts, err := c.index.ListFacts(ctx, ownerID, c.displayLimit)
	if err != nil {
		return nil, types.IndexError("failed to list facts", err)
	}
	return facts, nil
}

// Curate 执行完整流程：抽取 → 逐条新颖性检查 → 仅写入新事实。
// 同一 owner 的调用串行执行，检查与写入之间不会被另一次整理插入。
func (c *Curator) Curate(ctx context.Context, ownerID string, userTexts []string) (CurationReport, error) {
	unlock := c.locks.Lock(ownerID)
	defer unlock()

	extraction, err := c.Extract(ctx, userTexts)
	if err != nil {
		return CurationReport{}, err
	}
	report := CurationReport{Extraction: extraction.Kind}
	if extraction.Kind != ExtractionFound {
		return report, nil
	}

	report.Candidates = dedupeCandidates(extraction.Candidates)
	lines := make([]string, len(report.Candidates))
	for i, cand := range report.Candidates {
		lines[i] = cand.Line()
	}
	vecs, err := c.embed(ctx, lines)
	if err != nil {
		return report, types.IndexError("failed to embed candidates", err)
	}

	var errs []error
	for i, cand := range report.Candidates {
		// 逐条检查后立即写入，批内语义重复也会被后一条的检查发现。
		isNew, nearest, err := c.isNewVector(ctx, ownerID, vecs[i])
		if err != nil {
			return report, err
		}
		if !isNew {
			slog.Debug("fact already known", "owner_id", ownerID, "fact", lines[i], "distance", nearest.Distance)
			report.Known = append(report.Known, lines[i])
			continue
		}

		fact := c.newFact(ownerID, lines[i], vecs[i])
		fact.Label, fact.Detail = cand.Label, cand.Detail
		fact.Category, fact.Confidence = cand.Category, cand.Confidence
		if err := c.addFact(ctx, fact); err != nil {
			slog.Error("failed to store fact", "owner_id", ownerID, "error", err)
			report.Failed = append(report.Failed, lines[i])
			errs = append(errs, err)
			continue
		}
		report.Stored = append(report.Stored, fact)
	}

	slog.Info("curation completed", "owner_id", ownerID,
		"candidates", len(report.Candidates), "stored", len(report.Stored),
		"known", len(report.Known), "failed", len(report.Failed))
	if len(errs) > 0 {
		return report, fmt.Errorf("failed to store %d of %d new facts: %w", len(errs), len(errs)+len(report.Stored), errors.Join(errs...))
	}
	return report, nil
}

func (c *Curator) newFact(ownerID, line string, vec []float32) types.Fact {
	fact := types.Fact{
		ID:        c.newID(),
		OwnerID:   ownerID,
		Content:   line,
		Category:  types.CategoryPersonal,
		Embedding: vec,
		CreatedAt: c.now().UTC(),
	}
	if cand, ok := ParseFactLine(line); ok {
		fact.Label, fact.Detail = cand.Label, cand.Detail
		fact.Category, fact.Confidence = cand.Category, cand.Confidence
	}
	return fact
}

func dedupeCandidates(candidates []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	result := make([]Candidate, 0, len(candidates))
	for _, cand := range candidates {
		key := strings.ToLower(cand.Label + "\x00" + cand.Detail)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, cand)
	}
	return result
}
