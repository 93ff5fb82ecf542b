package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Maarij07/gmap-scrapper/internal/discover"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedSurface serves one canned href list per discovery round and
// counts feed scrolls.
type scriptedSurface struct {
	rounds     [][]string
	round      int
	scrolls    int
	attrsErr   error
	onDiscover func(round int)
}

func (s *scriptedSurface) Navigate(context.Context, string) error { return nil }
func (s *scriptedSurface) WaitVisible(context.Context, string, time.Duration) error {
	return nil
}
func (s *scriptedSurface) Text(context.Context, string) (string, error) { return "", nil }
func (s *scriptedSurface) Attr(context.Context, string, string) (string, error) {
	return "", nil
}
func (s *scriptedSurface) Attrs(_ context.Context, selector, _ string) ([]string, error) {
	if s.attrsErr != nil {
		return nil, s.attrsErr
	}
	// The tracker probes the fallback selector after an empty primary
	// yield; only primary probes start a new round.
	if selector != `a[href*="/maps/place/"]` {
		return nil, nil
	}
	s.round++
	if s.onDiscover != nil {
		s.onDiscover(s.round)
	}
	if s.round-1 < len(s.rounds) {
		return s.rounds[s.round-1], nil
	}
	return nil, nil
}
func (s *scriptedSurface) Click(context.Context, string) error { return nil }
func (s *scriptedSurface) ScrollFeed(context.Context) error {
	s.scrolls++
	return nil
}
func (s *scriptedSurface) Back(context.Context) error { return nil }

type fakeDriver struct {
	processed []string
	record    bool
	err       error
}

func (d *fakeDriver) Process(_ context.Context, h discover.Handle) (bool, error) {
	d.processed = append(d.processed, h.Href)
	return d.record, d.err
}

func newController(cfg Config, s *scriptedSurface, d Driver) *Controller {
	return New(cfg, s, discover.NewTracker(), d, zap.NewNop())
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newController(Config{BackoffThreshold: 5}, &scriptedSurface{}, &fakeDriver{})
	total, err := c.Run(ctx)

	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Equal(t, Terminated, c.State())
}

func TestRunExtractsAndCountsRecorded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	surf := &scriptedSurface{
		rounds: [][]string{{"https://maps/place/a", "https://maps/place/b"}},
		onDiscover: func(round int) {
			if round >= 2 {
				cancel()
			}
		},
	}
	driver := &fakeDriver{record: true}

	c := newController(Config{BackoffThreshold: 5}, surf, driver)
	total, err := c.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"https://maps/place/a", "https://maps/place/b"}, driver.processed)
}

func TestRunNoBackoffBeforeThreshold(t *testing.T) {
	// Scenario: three zero-yield rounds against a threshold of five must
	// keep the controller in the Advancing/Discovering cycle; every round
	// scrolls, none backs off.
	ctx, cancel := context.WithCancel(context.Background())
	surf := &scriptedSurface{
		onDiscover: func(round int) {
			if round >= 4 {
				cancel()
			}
		},
	}

	c := newController(Config{BackoffThreshold: 5}, surf, &fakeDriver{})
	total, err := c.Run(ctx)

	require.NoError(t, err)
	assert.Zero(t, total)
	// Rounds 1-3 each advanced the view; round 4 was cancelled before
	// its advance. Backoff would have swallowed one of the scrolls.
	assert.Equal(t, 3, surf.scrolls)
}

func TestRunBackoffAtThreshold(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	surf := &scriptedSurface{
		onDiscover: func(round int) {
			if round >= 10 {
				cancel()
			}
		},
	}

	c := newController(Config{BackoffThreshold: 5, BackoffInterval: time.Millisecond}, surf, &fakeDriver{})
	_, err := c.Run(ctx)
	require.NoError(t, err)

	// Rounds 1-4 advance, round 5 backs off (counter reset), rounds 6-9
	// advance again, round 10 is cancelled: 8 scrolls in total.
	assert.Equal(t, 8, surf.scrolls)
}

func TestRunZeroRecordedRoundFeedsCounter(t *testing.T) {
	// Handles were yielded but none produced a named record; that round
	// still counts as no progress.
	ctx, cancel := context.WithCancel(context.Background())
	surf := &scriptedSurface{
		rounds: [][]string{{"https://maps/place/a"}},
		onDiscover: func(round int) {
			if round >= 2 {
				cancel()
			}
		},
	}
	driver := &fakeDriver{record: false}

	c := newController(Config{BackoffThreshold: 1, BackoffInterval: time.Millisecond}, surf, driver)
	total, err := c.Run(ctx)

	require.NoError(t, err)
	assert.Zero(t, total)
	require.Len(t, driver.processed, 1)
	// With threshold 1 the failed round goes straight to Backoff, so the
	// view is never advanced.
	assert.Zero(t, surf.scrolls)
}

func TestRunFatalSurfaceErrorTerminates(t *testing.T) {
	surf := &scriptedSurface{attrsErr: errors.New("websocket: connection broken")}

	c := newController(Config{BackoffThreshold: 5}, surf, &fakeDriver{})
	total, err := c.Run(context.Background())

	require.Error(t, err)
	assert.Zero(t, total)
	assert.Equal(t, Terminated, c.State())
}

func TestRunNonFatalDiscoveryErrorIsZeroYield(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	surf := &scriptedSurface{attrsErr: errors.New("selector timeout")}

	c := newController(Config{BackoffThreshold: 5, SettleInterval: time.Millisecond}, surf, &fakeDriver{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	total, err := c.Run(ctx)

	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Equal(t, Terminated, c.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "discovering", Discovering.String())
	assert.Equal(t, "extracting", Extracting.String())
	assert.Equal(t, "advancing", Advancing.String())
	assert.Equal(t, "backoff", Backoff.String())
	assert.Equal(t, "terminated", Terminated.String())
}
