package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/easeaico/recall/internal/models"
	"github.com/easeaico/recall/internal/types"
	"github.com/easeaico/recall/internal/utils"
)

const (
	// DefaultLimit caps a full fetch of one owner's facts.
	DefaultLimit = 1000
	// DefaultCallTimeout bounds the index fetch.
	DefaultCallTimeout = 30 * time.Second
)

// Completer is the classification capability, implemented by models.Gateway.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, conversation []types.Message, params models.GenerateParams) (string, error)
}

// FactLister is the unranked, owner-filtered full fetch of the fact index.
type FactLister interface {
	ListFacts(ctx context.Context, ownerID string, limit int) ([]types.Fact, error)
}

// Engine gates and performs per-turn fact retrieval.
type Engine struct {
	completer Completer
	facts     FactLister
	limit     int
	timeout   time.Duration
}

// NewEngine returns an Engine; limit <= 0 uses DefaultLimit and timeout <= 0
// uses DefaultCallTimeout. The policy call is bounded by the gateway.
func NewEngine(completer Completer, facts FactLister, limit int, timeout time.Duration) *Engine {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Engine{completer: completer, facts: facts, limit: limit, timeout: timeout}
}

// Decide runs the classification call. A gateway error is returned with
// DecisionSkip so callers that ignore the error still fail safe.
func (e *Engine) Decide(ctx context.Context, history []types.Message, query string) (Decision, error) {
	raw, err := e.completer.Complete(ctx, policyPrompt,
		[]types.Message{{Role: types.RoleUser, Content: buildPolicyInput(history, query)}},
		models.Deterministic())
	if err != nil {
		return DecisionSkip, fmt.Errorf("retrieval decision failed: %w", err)
	}

	decision := ParseDecision(raw)
	if decision == DecisionMalformed {
		slog.Warn("malformed retrieval decision, defaulting to skip", "raw", utils.Truncate(raw, 80))
	}
	return decision, nil
}

// Retrieve fetches every fact of ownerID up to the cap with a neutral query.
func (e *Engine) Retrieve(ctx context.Context, ownerID string) ([]types.Fact, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	facts, err := e.facts.ListFacts(ctx, ownerID, e.limit)
	if err != nil {
		return nil, types.IndexError("retrieve facts", err)
	}
	return facts, nil
}

// Run drives one turn through the automaton and always returns a terminal
// state. Gateway failures degrade to Skipped and index failures to Retrieved
// with no facts; the cause is kept in State.Degraded.
func (e *Engine) Run(ctx context.Context, ownerID string, history []types.Message, query string) *State {
	state := NewState(ownerID, history, query)

	decision, err := e.Decide(ctx, history, query)
	if err != nil {
		slog.Warn("retrieval decision unavailable, skipping", "owner_id", ownerID, "error", err)
		decision = DecisionSkip
	}
	// transitions below only fail on programming errors
	_ = state.decide(decision, err)
	slog.Debug("retrieval decided", "owner_id", ownerID, "decision", decision.String())

	if !state.NeedsRetrieval() {
		_ = state.skip()
		return state
	}

	facts, err := e.Retrieve(ctx, ownerID)
	if err != nil {
		slog.Warn("fact retrieval failed, continuing without context", "owner_id", ownerID, "error", err)
		facts = nil
	}
	_ = state.retrieved(facts, err)
	slog.Debug("facts retrieved", "owner_id", ownerID, "count", len(facts))
	return state
}
