// internal/journal/journal.go
//
// Append-only JSON-lines artifacts for a run: one record per event plus a
// final summary document. The files feed offline audit and prompt iteration,
// so records keep the raw oracle output alongside the structured payload.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/config"
)

// Event names recorded over a run's lifetime.
const (
	EventPlanCreated  = "plan_created"
	EventReplan       = "replan"
	EventStepResult   = "step_result"
	EventVisionSelect = "vision_select"
)

// record is the envelope around every journalled event.
type record struct {
	Event     string    `json:"event"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"ts"`
	Payload   any       `json:"payload"`
}

// FileJournal writes one JSONL file per run plus a side-car summary document.
// It implements schemas.Journal. Record never fails the run: write errors are
// logged and the run continues, because losing an audit line must not abort a
// live browser session.
type FileJournal struct {
	runID       string
	eventsPath  string
	summaryPath string
	pretty      bool
	logger      *zap.Logger

	mu   sync.Mutex
	file *os.File
}

// NewFileJournal creates the journal directory and opens the per-run events
// file for appending.
func NewFileJournal(cfg config.JournalConfig, runID string, logger *zap.Logger) (*FileJournal, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal dir %q: %w", cfg.Dir, err)
	}

	eventsPath := filepath.Join(cfg.Dir, runID+".jsonl")
	file, err := os.OpenFile(eventsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening journal file %q: %w", eventsPath, err)
	}

	return &FileJournal{
		runID:       runID,
		eventsPath:  eventsPath,
		summaryPath: filepath.Join(cfg.Dir, runID+".summary.json"),
		pretty:      cfg.Pretty,
		logger:      logger.Named("journal"),
		file:        file,
	}, nil
}

// EventsPath returns the path of the per-run JSONL file.
func (j *FileJournal) EventsPath() string { return j.eventsPath }

// SummaryPath returns the path the summary document is written to.
func (j *FileJournal) SummaryPath() string { return j.summaryPath }

// Record appends one event line.
func (j *FileJournal) Record(event string, payload any) {
	line, err := json.Marshal(record{
		Event:     event,
		RunID:     j.runID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		j.logger.Error("Failed to encode journal record", zap.String("event", event), zap.Error(err))
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		j.logger.Warn("Journal record after close", zap.String("event", event))
		return
	}
	if _, err := j.file.Write(append(line, '\n')); err != nil {
		j.logger.Error("Failed to append journal record", zap.String("event", event), zap.Error(err))
	}
}

// WriteSummary writes the final run summary as its own document.
func (j *FileJournal) WriteSummary(summary schemas.RunSummary) error {
	var (
		body []byte
		err  error
	)
	if j.pretty {
		body, err = json.MarshalIndent(summary, "", "  ")
	} else {
		body, err = json.Marshal(summary)
	}
	if err != nil {
		return fmt.Errorf("encoding run summary: %w", err)
	}
	if err := os.WriteFile(j.summaryPath, body, 0o644); err != nil {
		return fmt.Errorf("writing run summary: %w", err)
	}
	return nil
}

// Close flushes and closes the events file. Records after Close are dropped.
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}
