package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/clearancesync/internal/config"
)

// RodLauncher implements Launcher using a headless Chromium via Rod. Every
// Open starts its own browser process, torn down by the page's Close.
type RodLauncher struct {
	cfg    config.BrowserConfig
	logger *slog.Logger
}

// NewRodLauncher creates a launcher for the given browser settings.
func NewRodLauncher(cfg config.BrowserConfig, logger *slog.Logger) *RodLauncher {
	return &RodLauncher{
		cfg:    cfg,
		logger: logger.With("component", "rod_launcher"),
	}
}

// Open launches a browser and returns a blank page ready for navigation.
func (rl *RodLauncher) Open(ctx context.Context) (Page, error) {
	l := rl.newLauncher()

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	var page *rod.Page
	if rl.cfg.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("open page: %w", err)
	}

	rp := &rodPage{
		launcher: l,
		browser:  browser,
		page:     page,
		idle:     rl.cfg.IdleWindow,
		logger:   rl.logger,
	}

	if rl.cfg.UserAgent != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: rl.cfg.UserAgent})
		if err != nil {
			rl.logger.Warn("failed to set user agent", "error", err)
		}
	}
	if rl.cfg.ViewportWidth > 0 && rl.cfg.ViewportHeight > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             rl.cfg.ViewportWidth,
			Height:            rl.cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			rl.logger.Warn("failed to set viewport", "error", err)
		}
	}

	rl.logger.Debug("browser page ready",
		"headless", rl.cfg.Headless,
		"stealth", rl.cfg.Stealth,
	)
	return rp, nil
}

// newLauncher builds the Chromium command line.
func (rl *RodLauncher) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(rl.cfg.Headless).
		NoSandbox(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	if rl.cfg.BinPath != "" {
		l = l.Bin(rl.cfg.BinPath)
	}
	if rl.cfg.ViewportWidth > 0 && rl.cfg.ViewportHeight > 0 {
		l = l.Set("window-size", fmt.Sprintf("%d,%d", rl.cfg.ViewportWidth, rl.cfg.ViewportHeight))
	}
	return l
}

// rodPage adapts a rod page to the Page interface.
type rodPage struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	idle     time.Duration
	logger   *slog.Logger
}

func (rp *rodPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p := rp.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()

	idle := rp.idle
	if idle <= 0 {
		idle = 500 * time.Millisecond
	}
	waitIdle := p.WaitRequestIdle(idle, nil, nil, nil)

	if err := p.Navigate(url); err != nil {
		return err
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	waitIdle()

	// WaitRequestIdle gives up silently when the deadline passes.
	if err := p.GetContext().Err(); err != nil {
		return fmt.Errorf("wait for network idle: %w", err)
	}
	return nil
}

func (rp *rodPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	p := rp.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()

	_, err := p.Element(selector)
	return err
}

func (rp *rodPage) Count(ctx context.Context, selector string) (int, error) {
	res, err := rp.page.Context(ctx).Eval(`(sel) => document.querySelectorAll(sel).length`, selector)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (rp *rodPage) ScrollViewport(ctx context.Context) error {
	_, err := rp.page.Context(ctx).Eval(`() => window.scrollBy(0, window.innerHeight)`)
	return err
}

// clickMoreJS clicks the first visible control whose text or test id reads
// like a pagination button.
const clickMoreJS = `() => {
	const phrases = ['show more', 'show me more', 'load more', 'see more'];
	for (const el of document.querySelectorAll('button, a, [data-test-id*="more"]')) {
		if (el.offsetParent === null || el.disabled) continue;
		const text = (el.textContent || '').toLowerCase().trim();
		const id = (el.getAttribute('data-test-id') || '').toLowerCase();
		if (phrases.some(p => text.includes(p)) || id.includes('show-more') || id.includes('load-more')) {
			el.click();
			return true;
		}
	}
	return false;
}`

func (rp *rodPage) ClickMore(ctx context.Context) (bool, error) {
	res, err := rp.page.Context(ctx).Eval(clickMoreJS)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (rp *rodPage) HTML(ctx context.Context) (string, error) {
	return rp.page.Context(ctx).HTML()
}

// Close shuts down the page and the browser process.
func (rp *rodPage) Close() error {
	var errs []error
	if rp.page != nil {
		if err := rp.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	if rp.browser != nil {
		if err := rp.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if rp.launcher != nil {
		rp.launcher.Kill()
	}
	return errors.Join(errs...)
}
