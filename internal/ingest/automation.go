package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// AutomationSession drives one browser session through the knowledge-base
// import wizard. Step methods take a context so the caller controls
// per-step deadlines; Close tears down the browser.
type AutomationSession interface {
	Login(ctx context.Context, username, password string) error
	OpenImport(ctx context.Context, datasetID string) error
	SelectFile(ctx context.Context, path string) error
	ConfirmStep(ctx context.Context) error
	IndexComplete(ctx context.Context) (bool, error)
	Screenshot(ctx context.Context, path string) error
	Close()
}

// SessionFactory creates automation sessions. The workflow depends on this
// rather than on Chrome directly.
type SessionFactory interface {
	NewSession(ctx context.Context) (AutomationSession, error)
}

// Client launches headless Chrome sessions against one knowledge-base site.
type Client struct {
	site        string
	selectors   SelectorSet
	headless    bool
	stepTimeout time.Duration
	logger      *slog.Logger
}

// ClientConfig holds configuration for the browser client.
type ClientConfig struct {
	Site        string // knowledge-base base URL, no trailing slash
	Selectors   SelectorSet
	Headless    bool
	StepTimeout time.Duration // per wizard step; 0 means 30s
	Logger      *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		site:        cfg.Site,
		selectors:   cfg.Selectors,
		headless:    cfg.Headless,
		stepTimeout: cfg.StepTimeout,
		logger:      cfg.Logger,
	}
}

// NewSession starts a fresh Chrome instance. Every import logs in from
// scratch, so no user data directory is kept between sessions.
func (c *Client) NewSession(ctx context.Context) (AutomationSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)

	if c.headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	// Starting the browser is the first Run call; do it here so a broken
	// Chrome install fails before the wizard starts.
	startCtx, cancel := context.WithTimeout(taskCtx, c.stepTimeout)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		taskCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &chromeSession{
		taskCtx: taskCtx,
		cancel: func() {
			taskCancel()
			allocCancel()
		},
		site:        c.site,
		sel:         c.selectors,
		stepTimeout: c.stepTimeout,
		logger:      c.logger,
	}, nil
}

type chromeSession struct {
	taskCtx     context.Context
	cancel      context.CancelFunc
	site        string
	sel         SelectorSet
	stepTimeout time.Duration
	logger      *slog.Logger
}

// step runs actions against the session browser under the per-step timeout.
// The caller's ctx only gates cancellation; chromedp actions must run on the
// session's task context to hit the right browser.
func (s *chromeSession) step(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.taskCtx, s.stepTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

func (s *chromeSession) Login(ctx context.Context, username, password string) error {
	s.logger.Debug("logging in", "site", s.site)
	return s.step(ctx,
		chromedp.Navigate(s.site+s.sel.LoginPath),
		chromedp.WaitVisible(s.sel.UsernameInput, chromedp.ByQuery),
		chromedp.SendKeys(s.sel.UsernameInput, username, chromedp.ByQuery),
		chromedp.SendKeys(s.sel.PasswordInput, password+kb.Enter, chromedp.ByQuery),
		chromedp.WaitNotPresent(s.sel.UsernameInput, chromedp.ByQuery),
	)
}

func (s *chromeSession) OpenImport(ctx context.Context, datasetID string) error {
	url := s.site + fmt.Sprintf(s.sel.ImportPath, datasetID)
	s.logger.Debug("opening import wizard", "url", url)
	return s.step(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.WaitReady(s.sel.FileInput, chromedp.ByQuery),
	)
}

func (s *chromeSession) SelectFile(ctx context.Context, path string) error {
	s.logger.Debug("selecting file", "path", path)
	return s.step(ctx,
		chromedp.SetUploadFiles(s.sel.FileInput, []string{path}, chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.WaitVisible(s.sel.NextButton, chromedp.ByQuery),
		chromedp.Click(s.sel.NextButton, chromedp.ByQuery),
	)
}

func (s *chromeSession) ConfirmStep(ctx context.Context) error {
	return s.step(ctx,
		chromedp.WaitVisible(s.sel.NextButton, chromedp.ByQuery),
		chromedp.Click(s.sel.NextButton, chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
	)
}

// IndexComplete probes for the element that appears once the uploaded file
// finished indexing. The workflow owns the polling loop.
func (s *chromeSession) IndexComplete(ctx context.Context) (bool, error) {
	var present bool
	err := s.step(ctx,
		chromedp.Evaluate(
			fmt.Sprintf(`document.querySelector('%s') !== null`, s.sel.IndexDone),
			&present,
		),
	)
	if err != nil {
		return false, err
	}
	return present, nil
}

func (s *chromeSession) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.step(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

func (s *chromeSession) Close() {
	s.cancel()
}
