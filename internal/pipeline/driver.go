// Package pipeline walks one discovered handle through extraction,
// enrichment and the sink.
package pipeline

import (
	"context"
	"time"

	"github.com/Maarij07/gmap-scrapper/internal/discover"
	"github.com/Maarij07/gmap-scrapper/internal/extract"
	"github.com/Maarij07/gmap-scrapper/internal/record"
	"github.com/Maarij07/gmap-scrapper/internal/sink"
	"github.com/Maarij07/gmap-scrapper/internal/surface"
	"go.uber.org/zap"
)

const detailHeadingSelector = "h1.DUwDvf"

// Driver processes entities strictly one at a time; it shares the view
// with discovery, alternating by program order.
type Driver struct {
	surface    surface.Surface
	writer     *sink.Writer
	region     string
	searchTerm string
	detailWait time.Duration
	settle     time.Duration
	log        *zap.Logger
	now        func() time.Time
}

func NewDriver(s surface.Surface, w *sink.Writer, region, searchTerm string, detailWait, settle time.Duration, log *zap.Logger) *Driver {
	return &Driver{
		surface:    s,
		writer:     w,
		region:     region,
		searchTerm: searchTerm,
		detailWait: detailWait,
		settle:     settle,
		log:        log,
		now:        time.Now,
	}
}

// Process opens one handle's detail view, extracts and records it.
// It reports whether a named business was extracted. Navigation back to
// the discovery view happens on every path, success or failure, so the
// next handle starts from a consistent view state.
func (d *Driver) Process(ctx context.Context, h discover.Handle) (recorded bool, err error) {
	defer func() {
		if backErr := d.surface.Back(ctx); backErr != nil {
			d.log.Warn("navigate back failed", zap.Error(backErr))
		}
		sleep(ctx, d.settle)
	}()

	if err := d.surface.Click(ctx, h.Selector()); err != nil {
		return false, err
	}

	// Bounded wait for the detail pane; expiry is soft, extraction
	// proceeds against whatever rendered.
	if err := d.surface.WaitVisible(ctx, detailHeadingSelector, d.detailWait); err != nil && surface.IsFatal(err) {
		return false, err
	}

	business := extract.Extract(ctx, d.surface, d.log)
	if business.Name == "" {
		d.log.Info("discarding unnamed business", zap.String("href", h.Href))
		return false, nil
	}

	lead := record.Enrich(business, d.region, d.searchTerm, d.now())
	if err := d.writer.Append(ctx, lead.Fields()); err != nil {
		// Record dropped; the run carries on (no retry, no buffering).
		d.log.Error("sink append failed", zap.String("name", business.Name), zap.Error(err))
	} else {
		d.log.Info("recorded business", zap.String("name", business.Name))
	}
	return true, nil
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
