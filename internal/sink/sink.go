// Package sink appends normalized records to an append-only tabular
// destination, reconciling the destination's header row with the expected
// column schema first.
package sink

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Tabular is the capability set consumed from the remote tabular store.
type Tabular interface {
	ReadHeader(ctx context.Context) ([]string, error)
	WriteHeader(ctx context.Context, header []string) error
	AppendRow(ctx context.Context, row []string) error
}

// Writer appends one record at a time. It neither batches nor retries; a
// failed append drops the record.
type Writer struct {
	store   Tabular
	schema  []string
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewWriter builds a writer for the given schema. appendsPerMinute bounds
// the append rate (remote stores enforce per-minute quotas); zero or
// negative disables pacing.
func NewWriter(store Tabular, schema []string, appendsPerMinute int, log *zap.Logger) *Writer {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if appendsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(appendsPerMinute)/60.0), 1)
	}
	return &Writer{store: store, schema: schema, limiter: limiter, log: log}
}

// EnsureSchema reconciles the destination header with the writer's schema:
// an empty header is written fresh, a mismatched one (different prefix or
// different length) is overwritten in place. Data rows are left untouched,
// so overwriting can desynchronize header and earlier rows; that case is
// logged loudly. Once converged the header is assumed stable for the rest
// of the run.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	header, err := w.store.ReadHeader(ctx)
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(header) == 0 {
		if err := w.store.WriteHeader(ctx, w.schema); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		w.log.Info("header written", zap.Int("columns", len(w.schema)))
		return nil
	}
	if headerMatches(header, w.schema) {
		return nil
	}
	w.log.Warn("destination header differs from schema, overwriting in place; earlier data rows may no longer align",
		zap.Strings("found", header),
		zap.Int("want_columns", len(w.schema)))
	if err := w.store.WriteHeader(ctx, w.schema); err != nil {
		return fmt.Errorf("overwrite header: %w", err)
	}
	return nil
}

// Append projects fields onto the schema order (missing fields render as
// "") and appends exactly one row.
func (w *Writer) Append(ctx context.Context, fields map[string]string) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}
	row := make([]string, len(w.schema))
	for i, col := range w.schema {
		row[i] = fields[col]
	}
	if err := w.store.AppendRow(ctx, row); err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

func headerMatches(header, schema []string) bool {
	if len(header) != len(schema) {
		return false
	}
	for i := range header {
		if header[i] != schema[i] {
			return false
		}
	}
	return true
}
