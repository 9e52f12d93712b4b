package schemas

import "context"

// -- Oracle Interfaces --

// GenerationOptions tunes a single oracle call.
type GenerationOptions struct {
	Temperature     float32
	MaxOutputTokens int
	// ForceJSONFormat asks the provider for a JSON-only response body.
	ForceJSONFormat bool
}

// GenerationRequest is the payload for a text-completion oracle call.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Options      GenerationOptions
}

// GenerationResult carries the oracle's text and its token accounting.
type GenerationResult struct {
	Content string
	Usage   TokenUsage
}

// LLMClient is a blocking text-completion oracle. The engine treats it as an
// opaque dependency: the planning oracle and the executor oracle are both
// instances of this interface, typically backed by different models.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// VisionLLMClient is the optional screenshot-capable oracle used as a
// fallback when the text oracle cannot resolve a click target.
type VisionLLMClient interface {
	GenerateWithImage(ctx context.Context, req GenerationRequest, imagePNG []byte) (GenerationResult, error)
}

// -- Action Backend --

// ActionBackend abstracts the live document the plan runs against. All calls
// are blocking; hard failures (e.g. a closed page) return errors which the
// step executor converts into failed step results, never crashes.
type ActionBackend interface {
	// Navigate loads the URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// Click activates the element with the given snapshot id.
	Click(ctx context.Context, elementID int) error
	// TypeText emits text into the focused element with human cadence and
	// submits it.
	TypeText(ctx context.Context, text string) error
	// Snapshot captures a fresh Observation of the current page.
	Snapshot(ctx context.Context) (Observation, error)
	// Screenshot captures the viewport as PNG bytes for the vision oracle.
	Screenshot(ctx context.Context) ([]byte, error)
}

// -- Audit Journal --

// Journal is the append-only sink for run events. One record per event,
// JSON-lines, used for offline audit and prompt iteration.
type Journal interface {
	Record(event string, payload any)
	WriteSummary(summary RunSummary) error
	Close() error
}
