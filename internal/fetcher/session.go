package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IshaanNene/clearancesync/internal/config"
	"github.com/IshaanNene/clearancesync/internal/types"
)

// SessionConfig holds the knobs of one browsing session.
type SessionConfig struct {
	ProductSelector   string
	NavigationTimeout time.Duration
	ContentTimeout    time.Duration
	MaxIterations     int
	StableRounds      int
	SettleDelay       time.Duration
	ClickMore         bool
}

// NewSessionConfig picks the session settings out of the root config.
func NewSessionConfig(cfg *config.Config) SessionConfig {
	return SessionConfig{
		ProductSelector:   cfg.Target.ProductSelector,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		ContentTimeout:    cfg.Browser.ContentTimeout,
		MaxIterations:     cfg.Scroll.MaxIterations,
		StableRounds:      cfg.Scroll.StableRounds,
		SettleDelay:       cfg.Scroll.SettleDelay,
		ClickMore:         cfg.Scroll.ClickMore,
	}
}

// ScrollStats describes how the scroll loop ended.
type ScrollStats struct {
	Scrolls   int  `json:"scrolls"   bson:"scrolls"`
	Clicks    int  `json:"clicks"    bson:"clicks"`
	Count     int  `json:"count"     bson:"count"`
	Converged bool `json:"converged" bson:"converged"`
}

// Session is one browsing context bound to the listing page. Callers must
// Close it on every path; Close is safe to call more than once.
type Session struct {
	page   Page
	cfg    SessionConfig
	logger *slog.Logger

	// sleep waits between a scroll and the next measurement.
	sleep func(ctx context.Context, d time.Duration) error
}

// Open acquires a page from the launcher and wraps it in a Session.
func Open(ctx context.Context, l Launcher, cfg SessionConfig, logger *slog.Logger) (*Session, error) {
	page, err := l.Open(ctx)
	if err != nil {
		return nil, err
	}
	return NewSession(page, cfg, logger), nil
}

// NewSession wraps an already opened page.
func NewSession(page Page, cfg SessionConfig, logger *slog.Logger) *Session {
	if cfg.StableRounds < 1 {
		cfg.StableRounds = 3
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 50
	}
	return &Session{
		page:   page,
		cfg:    cfg,
		logger: logger.With("component", "browser_session"),
		sleep:  sleepCtx,
	}
}

// Navigate loads the listing page. Any failure, including the idle wait
// running past its timeout, is reported as a NavigationError.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.page == nil {
		return &types.NavigationError{URL: url, Err: types.ErrNoPage}
	}

	s.logger.Info("navigating", "url", url, "timeout", s.cfg.NavigationTimeout)
	if err := s.page.Navigate(ctx, url, s.cfg.NavigationTimeout); err != nil {
		return &types.NavigationError{URL: url, Err: err}
	}
	return nil
}

// AwaitFirstContent waits for the first product element. Absence is not an
// error: the grid may still be loading, so it logs and reports false.
func (s *Session) AwaitFirstContent(ctx context.Context) bool {
	if s.page == nil {
		return false
	}
	err := s.page.WaitFor(ctx, s.cfg.ProductSelector, s.cfg.ContentTimeout)
	if err != nil {
		s.logger.Warn("products selector not found yet, continuing",
			"selector", s.cfg.ProductSelector,
			"timeout", s.cfg.ContentTimeout,
			"error", err,
		)
		return false
	}
	return true
}

// ScrollConverge scrolls the page one viewport at a time until the number of
// product elements stays the same for StableRounds consecutive measurements,
// or MaxIterations is reached. With ClickMore, a load-more control is clicked
// after each scroll and a landed click restarts the stability count.
func (s *Session) ScrollConverge(ctx context.Context) (ScrollStats, error) {
	var stats ScrollStats
	if s.page == nil {
		return stats, types.ErrNoPage
	}

	previous := -1
	stagnant := 0

	for i := 0; i < s.cfg.MaxIterations; i++ {
		count, err := s.page.Count(ctx, s.cfg.ProductSelector)
		if err != nil {
			return stats, fmt.Errorf("measure product count: %w", err)
		}
		stats.Count = count

		if count == previous {
			stagnant++
			if stagnant >= s.cfg.StableRounds {
				stats.Converged = true
				break
			}
		} else {
			if previous >= 0 {
				s.logger.Debug("new products loaded", "from", previous, "to", count)
			}
			stagnant = 0
		}
		previous = count

		if err := s.page.ScrollViewport(ctx); err != nil {
			s.logger.Warn("scroll failed, stopping", "error", err, "scrolls", stats.Scrolls)
			break
		}
		stats.Scrolls++

		if s.cfg.ClickMore {
			clicked, err := s.page.ClickMore(ctx)
			if err != nil {
				s.logger.Debug("load-more click failed", "error", err)
			} else if clicked {
				stats.Clicks++
				stagnant = 0
				s.logger.Debug("clicked load-more control", "clicks", stats.Clicks)
			}
		}

		if err := s.sleep(ctx, s.cfg.SettleDelay); err != nil {
			return stats, err
		}
	}

	if !stats.Converged {
		s.logger.Warn("scroll loop hit iteration cap before converging",
			"max_iterations", s.cfg.MaxIterations,
			"count", stats.Count,
		)
	}
	s.logger.Info("finished scrolling",
		"products", stats.Count,
		"scrolls", stats.Scrolls,
		"clicks", stats.Clicks,
		"converged", stats.Converged,
	)
	return stats, nil
}

// Snapshot returns the rendered DOM.
func (s *Session) Snapshot(ctx context.Context) (string, error) {
	if s.page == nil {
		return "", types.ErrNoPage
	}
	html, err := s.page.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	if strings.TrimSpace(html) == "" {
		return "", types.ErrEmptySnapshot
	}
	return html, nil
}

// Close releases the page.
func (s *Session) Close() error {
	if s.page == nil {
		return nil
	}
	page := s.page
	s.page = nil
	if err := page.Close(); err != nil {
		s.logger.Warn("error closing browser", "error", err)
		return err
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
