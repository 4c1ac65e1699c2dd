package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/easeaico/recall/internal/models"
	"github.com/easeaico/recall/internal/types"
)

type fakeCompleter struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
	system   string
	input    string
	params   models.GenerateParams
	delay    time.Duration
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt string, conversation []types.Message, params models.GenerateParams) (string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.system = systemPrompt
	if len(conversation) > 0 {
		f.input = conversation[len(conversation)-1].Content
	}
	f.params = params
	return f.response, f.err
}

var _ Completer = (*fakeCompleter)(nil)

// fakeIndex is an in-memory cosine index that records the owner filter of every call.
type fakeIndex struct {
	mu       sync.Mutex
	facts    []types.Fact
	addErr   error
	failOn   string
	queryErr error
	owners   []string
}

func (f *fakeIndex) AddFact(_ context.Context, fact types.Fact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners = append(f.owners, fact.OwnerID)
	if f.addErr != nil || (f.failOn != "" && strings.Contains(fact.Content, f.failOn)) {
		return errors.Join(types.ErrIndexUnavailable, f.addErr)
	}
	f.facts = append(f.facts, fact)
	return nil
}

func (f *fakeIndex) Nearest(_ context.Context, ownerID string, embedding []float32, k int) ([]types.ScoredFact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners = append(f.owners, ownerID)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var scored []types.ScoredFact
	for _, fact := range f.facts {
		if fact.OwnerID != ownerID {
			continue
		}
		scored = append(scored, types.ScoredFact{Fact: fact, Distance: cosineDistance(fact.Embedding, embedding)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Distance < scored[j].Distance })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (f *fakeIndex) ListFacts(_ context.Context, ownerID string, limit int) ([]types.Fact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners = append(f.owners, ownerID)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var result []types.Fact
	for _, fact := range f.facts {
		if fact.OwnerID == ownerID && len(result) < limit {
			result = append(result, fact)
		}
	}
	return result, nil
}

var _ FactIndex = (*fakeIndex)(nil)

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedDocument(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service down")
}

func (failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service down")
}

// stalledEmbedder blocks until its context ends. Calls are counted.
type stalledEmbedder struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (s *stalledEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stalledEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.entered != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.release:
		return NewHashEmbedder(64).EmbedDocuments(ctx, texts)
	}
}

func (s *stalledEmbedder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

const aliceFacts = "- Name: Alice (Confidence: High)\n- Occupation: Software engineer (Confidence: High)\n- Dietary preference: Vegetarian (Confidence: High)"

func newTestCurator(completer Completer, index FactIndex) *Curator {
	return NewCurator(completer, NewHashEmbedder(64), index, DefaultNoveltyThreshold, 0, 0)
}

func TestExtractUsesDeterministicStrictPrompt(t *testing.T) {
	completer := &fakeCompleter{response: aliceFacts}
	curator := newTestCurator(completer, &fakeIndex{})

	got, err := curator.Extract(context.Background(), []string{"I'm a vegetarian software engineer named Alice"})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if got.Kind != ExtractionFound || len(got.Candidates) < 3 {
		t.Fatalf("expected at least three facts, got %+v", got)
	}
	if completer.params.Temperature != 0 {
		t.Fatalf("expected deterministic extraction, got %+v", completer.params)
	}
	if !strings.Contains(completer.system, NoFactsSentinel) || !strings.Contains(completer.system, "(Confidence: High/Medium/Low)") {
		t.Fatalf("expected strict format and sentinel in prompt")
	}
	if !strings.Contains(completer.input, "vegetarian software engineer named Alice") {
		t.Fatalf("expected user text in extraction input, got %q", completer.input)
	}
}

func TestExtractEmptyInputSkipsGateway(t *testing.T) {
	completer := &fakeCompleter{response: aliceFacts}
	got, err := newTestCurator(completer, &fakeIndex{}).Extract(context.Background(), []string{" ", ""})
	if err != nil || got.Kind != ExtractionNone {
		t.Fatalf("expected no facts without error, got %+v, %v", got, err)
	}
	if completer.calls != 0 {
		t.Fatalf("expected gateway to be skipped, got %d calls", completer.calls)
	}
}

func TestExtractGatewayFailure(t *testing.T) {
	completer := &fakeCompleter{err: types.ErrGatewayUnavailable}
	_, err := newTestCurator(completer, &fakeIndex{}).Extract(context.Background(), []string{"I live in Oslo"})
	if !errors.Is(err, types.ErrGatewayUnavailable) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestIsNewOnEmptyStore(t *testing.T) {
	curator := newTestCurator(&fakeCompleter{}, &fakeIndex{})
	isNew, err := curator.IsNew(context.Background(), "u1", "- Name: Alice (Confidence: High)")
	if err != nil || !isNew {
		t.Fatalf("expected new on empty store, got %v, %v", isNew, err)
	}
}

func TestIsNewThresholdIsDistance(t *testing.T) {
	index := &fakeIndex{facts: []types.Fact{{OwnerID: "u1", Content: "x", Embedding: []float32{1, 0}}}}
	curator := NewCurator(&fakeCompleter{}, &vectorEmbedder{vectors: map[string][]float32{
		"near": {0.999, 0.04},
		"far":  {0.6, 0.8},
	}}, index, 0.1, 0, 0)

	near, err := curator.IsNew(context.Background(), "u1", "near")
	if err != nil || near {
		t.Fatalf("expected near vector to be known, got %v, %v", near, err)
	}
	far, err := curator.IsNew(context.Background(), "u1", "far")
	if err != nil || !far {
		t.Fatalf("expected far vector to be new, got %v, %v", far, err)
	}
	other, err := curator.IsNew(context.Background(), "u2", "near")
	if err != nil || !other {
		t.Fatalf("expected other owner's facts to be ignored, got %v, %v", other, err)
	}
}

type vectorEmbedder struct {
	vectors map[string][]float32
}

func (v *vectorEmbedder) EmbedDocument(_ context.Context, text string) ([]float32, error) {
	return v.vectors[text], nil
}

func (v *vectorEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, v.vectors[text])
	}
	return out, nil
}

func TestCurateIsIdempotent(t *testing.T) {
	index := &fakeIndex{}
	curator := newTestCurator(&fakeCompleter{response: aliceFacts}, index)
	ctx := context.Background()

	first, err := curator.Curate(ctx, "u1", []string{"I'm a vegetarian software engineer named Alice"})
	if err != nil {
		t.Fatalf("first Curate returned error: %v", err)
	}
	if len(first.Stored) != 3 || first.NothingNew() {
		t.Fatalf("expected 3 stored facts, got %+v", first)
	}
	second, err := curator.Curate(ctx, "u1", []string{"I'm a vegetarian software engineer named Alice"})
	if err != nil {
		t.Fatalf("second Curate returned error: %v", err)
	}
	if len(second.Stored) != 0 || len(second.Known) != 3 || !second.NothingNew() {
		t.Fatalf("expected all facts known on second pass, got %+v", second)
	}
	if len(index.facts) != 3 {
		t.Fatalf("expected fact set stored once, got %d facts", len(index.facts))
	}

	stored := index.facts[2]
	if stored.OwnerID != "u1" || stored.Category != types.CategoryHealth || stored.Confidence != types.ConfidenceHigh || stored.ID == "" {
		t.Fatalf("unexpected stored fact %+v", stored)
	}
	for _, owner := range index.owners {
		if owner != "u1" {
			t.Fatalf("expected every index call scoped to u1, saw %q", owner)
		}
	}
}

func TestCurateDropsDuplicateLinesInBatch(t *testing.T) {
	index := &fakeIndex{}
	response := "- Name: Alice (Confidence: High)\n- name: alice (Confidence: Medium)\n- Pet: Cat (Confidence: High)"
	report, err := newTestCurator(&fakeCompleter{response: response}, index).Curate(context.Background(), "u1", []string{"x"})
	if err != nil {
		t.Fatalf("Curate returned error: %v", err)
	}
	if len(report.Candidates) != 2 || len(index.facts) != 2 {
		t.Fatalf("expected duplicate candidate dropped, got %+v", report)
	}
}

func TestCurateNoFactsAndMalformed(t *testing.T) {
	for _, response := range []string{NoFactsSentinel, "Sure! Here you go: Alice"} {
		index := &fakeIndex{}
		report, err := newTestCurator(&fakeCompleter{response: response}, index).Curate(context.Background(), "u1", []string{"The weather is nice today."})
		if err != nil {
			t.Fatalf("Curate returned error: %v", err)
		}
		if !report.NothingNew() || len(index.facts) != 0 {
			t.Fatalf("expected nothing stored for %q, got %+v", response, report)
		}
	}
}

func TestCurateSurfacesStoreFailure(t *testing.T) {
	index := &fakeIndex{failOn: "Occupation"}
	report, err := newTestCurator(&fakeCompleter{response: aliceFacts}, index).Curate(context.Background(), "u1", []string{"x"})
	if !errors.Is(err, types.ErrIndexUnavailable) {
		t.Fatalf("expected index error, got %v", err)
	}
	if len(report.Stored) != 2 || len(report.Failed) != 1 || report.NothingNew() {
		t.Fatalf("expected best-effort per item writes, got %+v", report)
	}
}

func TestCurateSurfacesNoveltyQueryFailure(t *testing.T) {
	index := &fakeIndex{queryErr: types.ErrIndexUnavailable}
	_, err := newTestCurator(&fakeCompleter{response: aliceFacts}, index).Curate(context.Background(), "u1", []string{"x"})
	if !errors.Is(err, types.ErrIndexUnavailable) {
		t.Fatalf("expected index error, got %v", err)
	}
	if len(index.facts) != 0 {
		t.Fatalf("expected no writes after failed novelty check")
	}
}

func TestCurateEmbeddingFailureIsIndexUnavailable(t *testing.T) {
	curator := NewCurator(&fakeCompleter{response: aliceFacts}, failingEmbedder{}, &fakeIndex{}, 0, 0, 0)
	_, err := curator.Curate(context.Background(), "u1", []string{"x"})
	if !errors.Is(err, types.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestCurateSerializesPerOwner(t *testing.T) {
	index := &fakeIndex{}
	curator := newTestCurator(&fakeCompleter{response: aliceFacts, delay: 10 * time.Millisecond}, index)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := curator.Curate(context.Background(), "u1", []string{"x"}); err != nil {
				t.Errorf("Curate returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(index.facts) != 3 {
		t.Fatalf("expected overlapping curations to store the fact set once, got %d", len(index.facts))
	}
	if curator.locks.size() != 0 {
		t.Fatalf("expected owner locks to be released")
	}
}

func TestStoreAndGetAllRoundTrip(t *testing.T) {
	index := &fakeIndex{}
	curator := newTestCurator(&fakeCompleter{}, index)
	ctx := context.Background()

	stored, err := curator.Store(ctx, "U", []string{"- Location: Lisbon (Confidence: High)", "free text fact"})
	if err != nil || len(stored) != 2 {
		t.Fatalf("Store returned %d facts, %v", len(stored), err)
	}
	if stored[0].Category != types.CategoryPersonal || stored[0].Detail != "Lisbon" {
		t.Fatalf("expected parsed fields on stored fact, got %+v", stored[0])
	}

	mine, err := curator.GetAll(ctx, "U")
	if err != nil || len(mine) != 2 {
		t.Fatalf("expected facts for U, got %d, %v", len(mine), err)
	}
	theirs, err := curator.GetAll(ctx, "V")
	if err != nil || len(theirs) != 0 {
		t.Fatalf("expected no facts for V, got %d, %v", len(theirs), err)
	}
}

func TestStoreIsBestEffort(t *testing.T) {
	index := &fakeIndex{failOn: "second"}
	stored, err := newTestCurator(&fakeCompleter{}, index).Store(context.Background(), "U", []string{"first", "second", "third"})
	if err == nil || !errors.Is(err, types.ErrIndexUnavailable) {
		t.Fatalf("expected joined index error, got %v", err)
	}
	if len(stored) != 2 || len(index.facts) != 2 {
		t.Fatalf("expected independent writes to succeed, got %d stored", len(stored))
	}
}

func TestCurateEmbeddingTimeoutReleasesOwner(t *testing.T) {
	embedder := &stalledEmbedder{}
	curator := NewCurator(&fakeCompleter{response: aliceFacts}, embedder, &fakeIndex{}, 0, 0, 20*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := curator.Curate(context.Background(), "u1", []string{"x"})
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, types.ErrIndexUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected timed out embedding as index error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected the embedding call to time out")
	}
	if curator.locks.size() != 0 {
		t.Fatalf("expected owner lock to be released after timeout")
	}
}

func TestStoreWaitsForCurateOfSameOwner(t *testing.T) {
	embedder := &stalledEmbedder{entered: make(chan struct{}, 1), release: make(chan struct{})}
	index := &fakeIndex{}
	curator := NewCurator(&fakeCompleter{response: aliceFacts}, embedder, index, 0, 0, time.Minute)
	ctx := context.Background()

	curated := make(chan error, 1)
	go func() {
		_, err := curator.Curate(ctx, "u1", []string{"x"})
		curated <- err
	}()
	<-embedder.entered

	stored := make(chan error, 1)
	go func() {
		_, err := curator.Store(ctx, "u1", []string{"- Location: Lisbon (Confidence: High)"})
		stored <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for curator.locks.waiters("u1") < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected Store to queue on the owner lock")
		}
		time.Sleep(time.Millisecond)
	}
	if embedder.count() != 1 {
		t.Fatalf("expected Store to wait for Curate, got %d embedding calls", embedder.count())
	}

	close(embedder.release)
	if err := <-curated; err != nil {
		t.Fatalf("Curate returned error: %v", err)
	}
	if err := <-stored; err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
	if len(index.facts) != 4 {
		t.Fatalf("expected both writers to store, got %d facts", len(index.facts))
	}
}
