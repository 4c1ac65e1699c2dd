package retrieval

import (
	"errors"
	"fmt"

	"github.com/easeaico/recall/internal/types"
)

// Phase is a node of the per-turn retrieval automaton:
// Pending -> Decided -> Skipped | Retrieved.
type Phase int

const (
	PhasePending Phase = iota
	PhaseDecided
	PhaseSkipped
	PhaseRetrieved
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseDecided:
		return "decided"
	case PhaseSkipped:
		return "skipped"
	case PhaseRetrieved:
		return "retrieved"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ErrInvalidTransition is returned when a State is driven out of order.
var ErrInvalidTransition = errors.New("invalid retrieval state transition")

// State is the transient per-turn record. It is never persisted.
type State struct {
	OwnerID  string
	History  []types.Message
	Query    string
	Decision Decision
	Facts    []types.Fact
	// Degraded holds the gateway or index error that forced a fallback, if any.
	Degraded error

	phase Phase
}

// NewState starts a turn in the pending phase.
func NewState(ownerID string, history []types.Message, query string) *State {
	return &State{OwnerID: ownerID, History: history, Query: query}
}

// Phase returns the current node.
func (s *State) Phase() Phase {
	return s.phase
}

// NeedsRetrieval is meaningful once the state is decided.
func (s *State) NeedsRetrieval() bool {
	return s.phase != PhasePending && s.Decision.NeedsRetrieval()
}

// Terminal reports whether the state can feed prompt assembly.
func (s *State) Terminal() bool {
	return s.phase == PhaseSkipped || s.phase == PhaseRetrieved
}

func (s *State) decide(d Decision, degraded error) error {
	if s.phase != PhasePending {
		return fmt.Errorf("%w: decide from %s", ErrInvalidTransition, s.phase)
	}
	s.Decision = d
	s.Degraded = degraded
	s.phase = PhaseDecided
	return nil
}

func (s *State) skip() error {
	if s.phase != PhaseDecided || s.Decision.NeedsRetrieval() {
		return fmt.Errorf("%w: skip from %s/%s", ErrInvalidTransition, s.phase, s.Decision)
	}
	s.phase = PhaseSkipped
	return nil
}

func (s *State) retrieved(facts []types.Fact, degraded error) error {
	if s.phase != PhaseDecided || !s.Decision.NeedsRetrieval() {
		return fmt.Errorf("%w: retrieve from %s/%s", ErrInvalidTransition, s.phase, s.Decision)
	}
	s.Facts = facts
	if degraded != nil {
		s.Degraded = degraded
	}
	s.phase = PhaseRetrieved
	return nil
}
