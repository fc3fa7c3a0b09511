package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/keelwise/keel/internal/keelerrors"
	"github.com/keelwise/keel/internal/models"
)

// fakeProvider serves the capabilities whose func is set.
type fakeProvider struct {
	name      string
	intent    func(ctx context.Context, text string, labels []string) (*models.IntentResult, error)
	sentiment func(ctx context.Context, text string) (*models.SentimentResult, error)
	entities  func(ctx context.Context, text string) (*models.EntityResult, error)
	embed     func(ctx context.Context, text string) (*models.EmbeddingResult, error)
	generate  func(ctx context.Context, prompt models.Prompt) (*models.GenerationResult, error)

	calls atomic.Int32
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Supports(capability string) bool {
	switch capability {
	case "intent":
		return f.intent != nil
	case "sentiment":
		return f.sentiment != nil
	case "entities":
		return f.entities != nil
	case "embeddings":
		return f.embed != nil
	case "generation":
		return f.generate != nil
	default:
		return false
	}
}

func (f *fakeProvider) ClassifyIntent(ctx context.Context, text string, labels []string) (*models.IntentResult, error) {
	f.calls.Add(1)
	if f.intent == nil {
		return nil, keelerrors.NewProviderUnavailableError(f.name, "intent")
	}

	return f.intent(ctx, text, labels)
}

func (f *fakeProvider) AnalyzeSentiment(ctx context.Context, text string) (*models.SentimentResult, error) {
	f.calls.Add(1)
	if f.sentiment == nil {
		return nil, keelerrors.NewProviderUnavailableError(f.name, "sentiment")
	}

	return f.sentiment(ctx, text)
}

func (f *fakeProvider) ExtractEntities(ctx context.Context, text string) (*models.EntityResult, error) {
	f.calls.Add(1)
	if f.entities == nil {
		return nil, keelerrors.NewProviderUnavailableError(f.name, "entities")
	}

	return f.entities(ctx, text)
}

func (f *fakeProvider) Embed(ctx context.Context, text string) (*models.EmbeddingResult, error) {
	f.calls.Add(1)
	if f.embed == nil {
		return nil, keelerrors.NewProviderUnavailableError(f.name, "embeddings")
	}

	return f.embed(ctx, text)
}

func (f *fakeProvider) Generate(ctx context.Context, prompt models.Prompt) (*models.GenerationResult, error) {
	f.calls.Add(1)
	if f.generate == nil {
		return nil, keelerrors.NewProviderUnavailableError(f.name, "generation")
	}

	return f.generate(ctx, prompt)
}

// healthyProvider answers every analysis capability.
func healthyProvider(name string) *fakeProvider {
	return &fakeProvider{
		name: name,
		intent: func(_ context.Context, _ string, _ []string) (*models.IntentResult, error) {
			return &models.IntentResult{
				Provider:   name,
				Model:      "zero-shot",
				Primary:    models.PatternOverwhelm,
				Labels:     map[string]float64{models.PatternOverwhelm: 0.9},
				Confidence: 0.9,
			}, nil
		},
		sentiment: func(context.Context, string) (*models.SentimentResult, error) {
			return &models.SentimentResult{Provider: name, Label: models.SentimentNegative, Score: 0.2}, nil
		},
		entities: func(context.Context, string) (*models.EntityResult, error) {
			return &models.EntityResult{Provider: name, Groups: map[string][]models.Entity{}}, nil
		},
		embed: func(context.Context, string) (*models.EmbeddingResult, error) {
			return &models.EmbeddingResult{Provider: name, Vector: []float32{0.1, 0.2}, Dimension: 2}, nil
		},
	}
}

// MockStore is a testify mock of Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Insert(ctx context.Context, table string, record models.Record) error {
	args := m.Called(ctx, table, record)
	return args.Error(0)
}

func (m *MockStore) Upsert(ctx context.Context, table, conflictColumn string, record models.Record) error {
	args := m.Called(ctx, table, conflictColumn, record)
	return args.Error(0)
}

func (m *MockStore) List(ctx context.Context, table string, where models.Record) ([]models.Record, error) {
	args := m.Called(ctx, table, where)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.Record), args.Error(1)
}

type recordingTracker struct {
	mu     sync.Mutex
	events []models.UsageEvent
}

func (r *recordingTracker) Track(_ context.Context, ev models.UsageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
}

func (r *recordingTracker) all() []models.UsageEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]models.UsageEvent(nil), r.events...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = c.t.Add(d)
}
