package executor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/config"
)

// fakeBackend is a scriptable ActionBackend. Snapshots are consumed from a
// queue so polling loops see a page that changes over time; the last queued
// observation sticks.
type fakeBackend struct {
	mu        sync.Mutex
	snapshots []schemas.Observation
	snapErr   error

	navErr   error
	clickErr error
	typeErr  error

	// onClick swaps the current page when the given element is clicked.
	onClick map[int]schemas.Observation

	navigations []string
	clicks      []int
	typed       []string

	png    []byte
	pngErr error
}

func (f *fakeBackend) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigations = append(f.navigations, url)
	return f.navErr
}

func (f *fakeBackend) Click(_ context.Context, elementID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, elementID)
	if obs, ok := f.onClick[elementID]; ok {
		f.snapshots = []schemas.Observation{obs}
	}
	return f.clickErr
}

func (f *fakeBackend) TypeText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed = append(f.typed, text)
	return f.typeErr
}

func (f *fakeBackend) Snapshot(_ context.Context) (schemas.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapErr != nil {
		return schemas.Observation{}, f.snapErr
	}
	if len(f.snapshots) == 0 {
		return schemas.Observation{}, errors.New("no snapshot scripted")
	}
	obs := f.snapshots[0]
	if len(f.snapshots) > 1 {
		f.snapshots = f.snapshots[1:]
	}
	return obs, nil
}

func (f *fakeBackend) Screenshot(_ context.Context) ([]byte, error) {
	if f.pngErr != nil {
		return nil, f.pngErr
	}
	if f.png == nil {
		return []byte{0x89, 'P', 'N', 'G'}, nil
	}
	return f.png, nil
}

// MockOracle mocks the text-completion oracle.
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) Generate(ctx context.Context, req schemas.GenerationRequest) (schemas.GenerationResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(schemas.GenerationResult), args.Error(1)
}

// MockVision mocks the screenshot-capable oracle.
type MockVision struct {
	mock.Mock
}

func (m *MockVision) GenerateWithImage(ctx context.Context, req schemas.GenerationRequest, imagePNG []byte) (schemas.GenerationResult, error) {
	args := m.Called(ctx, req, imagePNG)
	return args.Get(0).(schemas.GenerationResult), args.Error(1)
}

// recordingJournal captures journal events in memory.
type recordingJournal struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	event   string
	payload any
}

func (j *recordingJournal) Record(event string, payload any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, recordedEvent{event: event, payload: payload})
}

func (j *recordingJournal) WriteSummary(schemas.RunSummary) error { return nil }
func (j *recordingJournal) Close() error                          { return nil }

func (j *recordingJournal) byEvent(event string) []recordedEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []recordedEvent
	for _, e := range j.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

// testRunConfig shrinks every polling budget so tests finish fast.
func testRunConfig() config.RunConfig {
	return config.RunConfig{
		MaxReplans:        1,
		PlanAttempts:      2,
		VerifyTimeout:     80 * time.Millisecond,
		VerifyInterval:    10 * time.Millisecond,
		VerifySnapshotCap: 4,
		HydrationTimeout:  80 * time.Millisecond,
		HydrationInterval: 10 * time.Millisecond,
		SubstepWindow:     40 * time.Millisecond,
	}
}

func newTestExecutor(backend schemas.ActionBackend, oracle schemas.LLMClient, vision schemas.VisionLLMClient) (*Executor, *recordingJournal) {
	jrnl := &recordingJournal{}
	return New(backend, oracle, vision, jrnl, testRunConfig(), zap.NewNop()), jrnl
}

func pspec(t *testing.T, kind schemas.PredicateKind, args ...any) schemas.PredicateSpec {
	t.Helper()
	spec := schemas.PredicateSpec{Predicate: kind}
	for _, a := range args {
		raw, err := json.Marshal(a)
		require.NoError(t, err)
		spec.Args = append(spec.Args, raw)
	}
	return spec
}

func genResult(content string) schemas.GenerationResult {
	return schemas.GenerationResult{
		Content: content,
		Usage:   schemas.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

// Fixtures. The shop pages mirror the shape of the pages the engine is
// pointed at in practice.

func homeObservation() schemas.Observation {
	return schemas.Observation{
		URL: "https://www.example.com/",
		Elements: []schemas.Element{
			{ID: 1, Role: "searchbox", Text: "Search"},
			{ID: 2, Role: "link", Text: "Deals", Href: "/deals"},
		},
	}
}

func resultsObservation() schemas.Observation {
	return schemas.Observation{
		URL: "https://www.example.com/s?k=usb+c+hub",
		Elements: []schemas.Element{
			{ID: 1, Role: "searchbox", Text: "Search"},
			{ID: 2, Role: "link", Text: "Anker 7-in-1 USB C Hub", Href: "/dp/B08C9HZ5YT"},
			{ID: 3, Role: "link", Text: "UGREEN Revodok", Href: "/gp/product/B0C2M8RR4P"},
			{ID: 4, Role: "link", Text: "Today's Deals", Href: "/deals"},
		},
	}
}

func productObservation() schemas.Observation {
	return schemas.Observation{
		URL: "https://www.example.com/dp/B08C9HZ5YT",
		Elements: []schemas.Element{
			{ID: 1, Role: "button", Text: "Add to Cart"},
			{ID: 2, Role: "button", Text: "Buy Now"},
		},
	}
}

func drawerObservation() schemas.Observation {
	return schemas.Observation{
		URL: "https://www.example.com/cart/smart-wagon",
		Elements: []schemas.Element{
			{ID: 1, Role: "heading", Text: "Add to Your Order"},
			{ID: 2, Role: "button", Text: "No thanks"},
			{ID: 3, Role: "button", Text: "Add protection"},
		},
	}
}
