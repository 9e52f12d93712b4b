// Package browser implements the action backend on a real Chrome instance
// driven over CDP.
package browser

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/config"
)

// Backend drives one Chrome tab. It implements schemas.ActionBackend; all
// methods are blocking and serialized by the caller.
type Backend struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	rng *rand.Rand

	mu       sync.Mutex
	isClosed bool
}

var _ schemas.ActionBackend = (*Backend)(nil)

// New launches Chrome and opens the tab the run will use.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Backend, error) {
	b := &Backend{
		cfg:    cfg,
		logger: logger.Named("browser"),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(ctx, allocatorOptions(cfg)...)

	tabOpts := []chromedp.ContextOption{}
	if cfg.Debug {
		tabOpts = append(tabOpts, chromedp.WithDebugf(b.logger.Sugar().Debugf))
	}
	b.tabCtx, b.tabCancel = chromedp.NewContext(b.allocCtx, tabOpts...)

	// Force the browser process to start so launch failures surface here
	// rather than on the first navigation.
	if err := chromedp.Run(b.tabCtx); err != nil {
		b.allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	if cfg.DisableCache {
		if err := chromedp.Run(b.tabCtx, network.SetCacheDisabled(true)); err != nil {
			b.logger.Warn("Failed to disable network cache", zap.Error(err))
		}
	}
	b.logger.Info("Browser launched", zap.Bool("headless", cfg.Headless))
	return b, nil
}

func allocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.DisableCache {
		opts = append(opts, chromedp.Flag("disable-application-cache", true))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}
	for _, arg := range cfg.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}
	return opts
}

// Navigate loads the URL and waits for the document plus a stabilize pause.
func (b *Backend) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := b.runContext(ctx, b.cfg.NavigationTimeout)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.cfg.StabilizeWait),
	)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Click activates an element from the last snapshot by its assigned id.
func (b *Backend) Click(ctx context.Context, elementID int) error {
	runCtx, cancel := b.runContext(ctx, b.cfg.NavigationTimeout)
	defer cancel()

	var found bool
	err := chromedp.Run(runCtx,
		chromedp.Evaluate(fmt.Sprintf(clickJS, elementID), &found),
	)
	if err != nil {
		return fmt.Errorf("click on element %d failed: %w", elementID, err)
	}
	if !found {
		return fmt.Errorf("element %d is not in the last snapshot", elementID)
	}
	// Clicks routinely kick off a navigation; give the page room to move.
	return chromedp.Run(runCtx, chromedp.Sleep(b.cfg.StabilizeWait))
}

// TypeText emits the text into the focused element with human key cadence,
// settles, and submits with Enter.
func (b *Backend) TypeText(ctx context.Context, text string) error {
	runCtx, cancel := b.runContext(ctx, b.cfg.NavigationTimeout)
	defer cancel()

	for _, r := range text {
		err := chromedp.Run(runCtx,
			chromedp.SendKeys("document.activeElement", string(r), chromedp.ByJSPath),
			chromedp.Sleep(b.keyDelay()),
		)
		if err != nil {
			return fmt.Errorf("typing failed: %w", err)
		}
	}

	settle := randomDuration(b.rng, b.cfg.Typing.SubmitSettleMin, b.cfg.Typing.SubmitSettleMax)
	err := chromedp.Run(runCtx,
		chromedp.Sleep(settle),
		chromedp.SendKeys("document.activeElement", kb.Enter, chromedp.ByJSPath),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.cfg.StabilizeWait),
	)
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}
	return nil
}

// keyDelay draws the next inter-key delay: uniform jitter, with an occasional
// longer hesitation.
func (b *Backend) keyDelay() time.Duration {
	t := b.cfg.Typing
	if b.rng.Float64() < t.PauseChance {
		return randomDuration(b.rng, t.PauseMin, t.PauseMax)
	}
	return randomDuration(b.rng, t.KeyDelayMin, t.KeyDelayMax)
}

func randomDuration(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)))
}

// Snapshot collects the page's interactive elements and assigns them the ids
// subsequent Click calls refer to.
func (b *Backend) Snapshot(ctx context.Context) (schemas.Observation, error) {
	runCtx, cancel := b.runContext(ctx, b.cfg.NavigationTimeout)
	defer cancel()

	var obs schemas.Observation
	if err := chromedp.Run(runCtx, chromedp.Evaluate(snapshotJS, &obs)); err != nil {
		return schemas.Observation{}, fmt.Errorf("snapshot failed: %w", err)
	}
	b.logger.Debug("Snapshot taken", zap.String("url", obs.URL), zap.Int("elements", len(obs.Elements)))
	return obs, nil
}

// Screenshot captures the current viewport as PNG.
func (b *Backend) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel := b.runContext(ctx, b.cfg.NavigationTimeout)
	defer cancel()

	var png []byte
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&png)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return png, nil
}

// Close shuts the tab and the browser process down. Idempotent.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isClosed {
		return
	}
	b.isClosed = true
	b.tabCancel()
	b.allocCancel()
	b.logger.Info("Browser closed")
}

// runContext bounds a CDP call with both the caller's context and the
// configured timeout, while still executing against the tab.
func (b *Backend) runContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(b.tabCtx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
