package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"relaybot/internal/domain"
)

// Policy controls what happens when an import arrives while another is
// already running against the single shared browser.
type Policy string

const (
	PolicyAllow  Policy = "allow"  // run concurrently (separate browsers)
	PolicyQueue  Policy = "queue"  // wait for the running import to finish
	PolicyReject Policy = "reject" // fail fast with a user-facing message
)

// Credentials for the knowledge-base web UI.
type Credentials struct {
	Username  string
	Password  string
	DatasetID string
}

// Workflow walks a local document through the knowledge-base import wizard:
// login, open the dataset import page, select the file, confirm the split
// and upload steps, then poll until indexing completes. The document is
// removed from disk on every exit path, success or failure.
type Workflow struct {
	sessions      SessionFactory
	creds         Credentials
	policy        Policy
	pollTimeout   time.Duration
	screenshotDir string
	logger        *slog.Logger

	busy chan struct{} // capacity 1, held while an import runs
}

// WorkflowConfig holds configuration for the ingestion workflow.
type WorkflowConfig struct {
	Sessions      SessionFactory
	Credentials   Credentials
	Policy        Policy
	PollTimeout   time.Duration // total budget for index polling; 0 means 5m
	ScreenshotDir string        // where failure screenshots land; "" disables them
	Logger        *slog.Logger
}

func NewWorkflow(cfg WorkflowConfig) *Workflow {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Minute
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyQueue
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Workflow{
		sessions:      cfg.Sessions,
		creds:         cfg.Credentials,
		policy:        cfg.Policy,
		pollTimeout:   cfg.PollTimeout,
		screenshotDir: cfg.ScreenshotDir,
		logger:        cfg.Logger,
		busy:          make(chan struct{}, 1),
	}
}

// Ingest imports the file at path into the configured dataset. It owns the
// file from this point on and deletes it before returning.
func (w *Workflow) Ingest(ctx context.Context, path string) error {
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			w.logger.Warn("failed to remove ingested file", "path", path, "err", err)
		}
	}()

	release, err := w.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	session, err := w.sessions.NewSession(ctx)
	if err != nil {
		return domain.Workflow(fmt.Errorf("open browser session: %w", err))
	}
	defer session.Close()

	steps := []struct {
		stage string
		run   func(context.Context) error
	}{
		{"login", func(ctx context.Context) error {
			return session.Login(ctx, w.creds.Username, w.creds.Password)
		}},
		{"open-import", func(ctx context.Context) error {
			return session.OpenImport(ctx, w.creds.DatasetID)
		}},
		{"select-file", func(ctx context.Context) error {
			return session.SelectFile(ctx, path)
		}},
		{"confirm-split", session.ConfirmStep},
		{"confirm-upload", session.ConfirmStep},
	}

	for _, step := range steps {
		w.logger.Debug("ingest step", "stage", step.stage, "file", filepath.Base(path))
		if err := step.run(ctx); err != nil {
			w.captureFailure(ctx, session, step.stage)
			return domain.Workflow(fmt.Errorf("%s: %w", step.stage, err))
		}
	}

	if err := w.waitIndexed(ctx, session); err != nil {
		w.captureFailure(ctx, session, "wait-indexed")
		return domain.Workflow(fmt.Errorf("wait-indexed: %w", err))
	}

	w.logger.Info("document indexed", "file", filepath.Base(path))
	return nil
}

// acquire applies the concurrency policy. The returned release func must be
// called once the import finishes.
func (w *Workflow) acquire(ctx context.Context) (func(), error) {
	switch w.policy {
	case PolicyAllow:
		return func() {}, nil
	case PolicyReject:
		select {
		case w.busy <- struct{}{}:
			return func() { <-w.busy }, nil
		default:
			return nil, domain.Validation("Another document is being indexed right now. Please try again in a few minutes. ⏳")
		}
	default: // PolicyQueue
		select {
		case w.busy <- struct{}{}:
			return func() { <-w.busy }, nil
		case <-ctx.Done():
			return nil, domain.Workflow(fmt.Errorf("waiting for import slot: %w", ctx.Err()))
		}
	}
}

// waitIndexed polls the wizard status with exponential backoff until the
// done marker appears or the poll budget runs out.
func (w *Workflow) waitIndexed(ctx context.Context, session AutomationSession) error {
	deadline := time.Now().Add(w.pollTimeout)
	delay := 2 * time.Second
	const maxDelay = 30 * time.Second

	for {
		done, err := session.IndexComplete(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if time.Now().Add(delay).After(deadline) {
			return fmt.Errorf("indexing did not finish within %s", w.pollTimeout)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if delay *= 2; delay > maxDelay {
			delay = maxDelay
		}
	}
}

// captureFailure grabs a screenshot of the wizard for diagnosis. Best
// effort: the import already failed, a screenshot error only gets logged.
func (w *Workflow) captureFailure(ctx context.Context, session AutomationSession, stage string) {
	if w.screenshotDir == "" {
		return
	}
	if err := os.MkdirAll(w.screenshotDir, 0o755); err != nil {
		w.logger.Warn("failed to create screenshot dir", "dir", w.screenshotDir, "err", err)
		return
	}
	path := filepath.Join(w.screenshotDir, "ingest-failure.png")
	if err := session.Screenshot(ctx, path); err != nil {
		w.logger.Warn("failed to capture failure screenshot", "stage", stage, "err", err)
		return
	}
	w.logger.Info("captured failure screenshot", "stage", stage, "path", path)
}
