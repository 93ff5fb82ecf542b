// Package control drives the discovery loop as an explicit state machine:
// Discovering -> Extracting -> Advancing -> Backoff -> Terminated. The
// controller never decides on its own that harvesting is done; only
// cancellation or loss of the surface terminates it.
package control

import (
	"context"
	"time"

	"github.com/Maarij07/gmap-scrapper/internal/discover"
	"github.com/Maarij07/gmap-scrapper/internal/surface"
	"go.uber.org/zap"
)

// State names one node of the controller's state machine.
type State int

const (
	Discovering State = iota
	Extracting
	Advancing
	Backoff
	Terminated
)

func (s State) String() string {
	switch s {
	case Discovering:
		return "discovering"
	case Extracting:
		return "extracting"
	case Advancing:
		return "advancing"
	case Backoff:
		return "backoff"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

// Driver is the extraction side of the loop; Process reports whether a
// named business came out of the handle.
type Driver interface {
	Process(ctx context.Context, h discover.Handle) (recorded bool, err error)
}

// Config tunes the controller's waits and backoff escalation.
type Config struct {
	// SettleInterval is the wait after advancing the view.
	SettleInterval time.Duration
	// BackoffInterval is the longer wait once no-progress rounds pile up.
	BackoffInterval time.Duration
	// BackoffThreshold is the no-progress round count that triggers Backoff.
	BackoffThreshold int
}

// Controller owns the no-progress counter and the run total.
type Controller struct {
	cfg     Config
	surface surface.Surface
	tracker *discover.Tracker
	driver  Driver
	log     *zap.Logger

	state      State
	noProgress int
	total      int
}

func New(cfg Config, s surface.Surface, t *discover.Tracker, d Driver, log *zap.Logger) *Controller {
	if cfg.BackoffThreshold <= 0 {
		cfg.BackoffThreshold = 5
	}
	return &Controller{cfg: cfg, surface: s, tracker: t, driver: d, log: log, state: Discovering}
}

// State exposes the current node, for tests and progress reporting.
func (c *Controller) State() State { return c.state }

// Total is the count of successfully recorded businesses so far.
func (c *Controller) Total() int { return c.total }

// Run loops until ctx is cancelled or the surface is lost, and returns the
// total recorded either way. A non-nil error means the surface died.
func (c *Controller) Run(ctx context.Context) (int, error) {
	var pending []discover.Handle

	for {
		// Cancellation is cooperative: polled between states only.
		if ctx.Err() != nil {
			c.terminate("cancelled")
			return c.total, nil
		}

		switch c.state {
		case Discovering:
			handles, err := c.tracker.DiscoverNew(ctx, c.surface)
			if err != nil {
				if surface.IsFatal(err) {
					c.terminate("surface lost")
					return c.total, err
				}
				// Both selectors failing is a zero-yield round.
				c.log.Warn("discovery failed", zap.Error(err))
				handles = nil
			}
			if len(handles) == 0 {
				c.noProgressRound()
			} else {
				c.log.Info("discovered businesses", zap.Int("new", len(handles)))
				pending = handles
				c.state = Extracting
			}

		case Extracting:
			recorded := 0
			for _, h := range pending {
				if ctx.Err() != nil {
					break
				}
				ok, err := c.driver.Process(ctx, h)
				if err != nil {
					if surface.IsFatal(err) {
						c.terminate("surface lost")
						return c.total, err
					}
					c.log.Warn("business skipped", zap.String("href", h.Href), zap.Error(err))
					continue
				}
				if ok {
					recorded++
				}
			}
			pending = nil
			c.total += recorded
			if recorded > 0 {
				c.noProgress = 0
				c.log.Info("round complete", zap.Int("recorded", recorded), zap.Int("total", c.total))
				c.state = Advancing
			} else {
				c.noProgressRound()
			}

		case Advancing:
			if err := c.surface.ScrollFeed(ctx); err != nil {
				if surface.IsFatal(err) {
					c.terminate("surface lost")
					return c.total, err
				}
				c.log.Warn("scroll failed", zap.Error(err))
			}
			sleep(ctx, c.cfg.SettleInterval)
			c.state = Discovering

		case Backoff:
			c.log.Info("no new results, backing off",
				zap.Duration("wait", c.cfg.BackoffInterval),
				zap.Int("total", c.total))
			sleep(ctx, c.cfg.BackoffInterval)
			c.noProgress = 0
			c.state = Discovering

		case Terminated:
			return c.total, nil
		}
	}
}

// noProgressRound increments the counter and escalates to Backoff once it
// reaches the threshold; otherwise the view is advanced again.
func (c *Controller) noProgressRound() {
	c.noProgress++
	c.log.Info("no new businesses this round",
		zap.Int("attempt", c.noProgress),
		zap.Int("threshold", c.cfg.BackoffThreshold))
	if c.noProgress >= c.cfg.BackoffThreshold {
		c.state = Backoff
	} else {
		c.state = Advancing
	}
}

func (c *Controller) terminate(reason string) {
	c.state = Terminated
	c.log.Info("run terminated", zap.String("reason", reason), zap.Int("total", c.total))
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
