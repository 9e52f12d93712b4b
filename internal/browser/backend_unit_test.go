package browser

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/pilot-cli/internal/config"
)

func TestAllocatorOptions(t *testing.T) {
	cfg := config.NewDefaultConfig().Browser()
	cfg.Headless = true
	cfg.IgnoreTLSErrors = true
	cfg.Args = []string{"disable-gpu"}

	opts := allocatorOptions(cfg)
	// Defaults plus headless, blink features, cache, TLS and the custom
	// arg; the count guards against silently dropping a flag source.
	assert.Len(t, opts, len(chromedp.DefaultExecAllocatorOptions)+5)
}

func TestKeyDelayStaysInWindow(t *testing.T) {
	b := &Backend{
		cfg: config.BrowserConfig{Typing: config.TypingConfig{
			KeyDelayMin: 40 * time.Millisecond,
			KeyDelayMax: 140 * time.Millisecond,
			PauseChance: 0, // no hesitations, keep the window tight
			PauseMin:    180 * time.Millisecond,
			PauseMax:    520 * time.Millisecond,
		}},
		rng: rand.New(rand.NewSource(1)),
	}
	for i := 0; i < 200; i++ {
		d := b.keyDelay()
		assert.GreaterOrEqual(t, d, 40*time.Millisecond)
		assert.Less(t, d, 140*time.Millisecond)
	}
}

func TestKeyDelayHesitations(t *testing.T) {
	b := &Backend{
		cfg: config.BrowserConfig{Typing: config.TypingConfig{
			KeyDelayMin: 40 * time.Millisecond,
			KeyDelayMax: 140 * time.Millisecond,
			PauseChance: 1, // always hesitate
			PauseMin:    180 * time.Millisecond,
			PauseMax:    520 * time.Millisecond,
		}},
		rng: rand.New(rand.NewSource(1)),
	}
	for i := 0; i < 200; i++ {
		d := b.keyDelay()
		assert.GreaterOrEqual(t, d, 180*time.Millisecond)
		assert.Less(t, d, 520*time.Millisecond)
	}
}

func TestRandomDuration(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	t.Run("degenerate window returns min", func(t *testing.T) {
		assert.Equal(t, time.Second, randomDuration(rng, time.Second, time.Second))
		assert.Equal(t, time.Second, randomDuration(rng, time.Second, time.Millisecond))
	})
	t.Run("samples stay inside the window", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			d := randomDuration(rng, 10*time.Millisecond, 20*time.Millisecond)
			assert.GreaterOrEqual(t, d, 10*time.Millisecond)
			assert.Less(t, d, 20*time.Millisecond)
		}
	})
}

func TestSnapshotScriptShape(t *testing.T) {
	// The scripts are opaque strings to Go; pin the contract pieces the
	// executor depends on so drive-by edits get caught.
	assert.Contains(t, snapshotJS, "__pilotElements")
	assert.Contains(t, snapshotJS, "window.location.href")
	for _, field := range []string{"id:", "role:", "text:", "href:"} {
		assert.Contains(t, snapshotJS, field)
	}
	assert.Contains(t, clickJS, "__pilotElements")
	assert.True(t, strings.Contains(clickJS, "%d"))
}
