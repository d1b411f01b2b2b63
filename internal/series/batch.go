package series

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tejusbharadwaj/pvforecast/internal/metrics"
)

// MaxQueryDays is the widest span the inverter archive answers in one query.
const MaxQueryDays = 16

// ErrNoData is returned when a range fetch produced no rows at all.
var ErrNoData = errors.New("no data in requested range")

// FetchFunc fetches the rows between start and end, both inclusive. It may
// return a nil or empty table when the source has nothing for the range.
type FetchFunc func(ctx context.Context, start, end time.Time) (*Table, error)

// Window is one sub-range of a batched fetch.
type Window struct {
	Start time.Time
	End   time.Time
}

// Windows splits [start, end] into consecutive windows of maxSpanDays days.
// Window k starts at start + k*maxSpanDays and ends maxSpanDays-1 days later;
// the last window is not clipped to end and may start exactly on end. A range
// of at most maxSpanDays whole days is a single window [start, end].
func Windows(start, end time.Time, maxSpanDays int) []Window {
	if maxSpanDays <= 0 || end.Before(start) {
		return nil
	}
	if wholeDays(start, end) <= maxSpanDays {
		return []Window{{Start: start, End: end}}
	}

	var out []Window
	for k := 0; ; k++ {
		ws := start.AddDate(0, 0, k*maxSpanDays)
		if ws.After(end) {
			break
		}
		out = append(out, Window{Start: ws, End: ws.AddDate(0, 0, maxSpanDays-1)})
	}
	return out
}

// wholeDays counts calendar days between the dates of start and end.
func wholeDays(start, end time.Time) int {
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	s := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	e := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours() / 24)
}

// BatchFetcher fetches long ranges window by window.
type BatchFetcher struct {
	maxSpanDays int
	logger      logrus.FieldLogger
}

// NewBatchFetcher returns a fetcher splitting ranges into windows of
// maxSpanDays days. A nil logger uses the logrus standard logger.
func NewBatchFetcher(maxSpanDays int, logger logrus.FieldLogger) *BatchFetcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BatchFetcher{maxSpanDays: maxSpanDays, logger: logger}
}

// FetchBatched fetches [start, end] with a fetcher using the standard logger.
func FetchBatched(ctx context.Context, start, end time.Time, maxSpanDays int, fetch FetchFunc) (*Table, error) {
	return NewBatchFetcher(maxSpanDays, nil).Fetch(ctx, start, end, fetch)
}

// Fetch retrieves [start, end].
//
// A range that fits a single window is fetched once and its error, if any, is
// returned as is. Longer ranges are fetched sequentially window by window; a
// failing window is logged and skipped, empty windows are dropped and the
// remaining tables are concatenated in window order. ErrNoData is returned
// when nothing remains. Context cancellation aborts the whole fetch.
func (b *BatchFetcher) Fetch(ctx context.Context, start, end time.Time, fetch FetchFunc) (*Table, error) {
	if b.maxSpanDays <= 0 {
		return nil, fmt.Errorf("invalid max span: %d days", b.maxSpanDays)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("invalid range: end %s before start %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	windows := Windows(start, end, b.maxSpanDays)
	if len(windows) == 1 {
		table, err := fetch(ctx, start, end)
		if err != nil {
			metrics.IncFetchWindow(metrics.ResultError)
			return nil, err
		}
		if table.Empty() {
			metrics.IncFetchWindow(metrics.ResultEmpty)
			return nil, ErrNoData
		}
		metrics.IncFetchWindow(metrics.ResultSuccess)
		return table, nil
	}

	var parts []*Table
	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		table, err := fetch(ctx, w.Start, w.End)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			metrics.IncFetchWindow(metrics.ResultError)
			b.logger.WithFields(logrus.Fields{
				"window_start": w.Start.Format(time.RFC3339),
				"window_end":   w.End.Format(time.RFC3339),
				"error":        err,
			}).Warn("Skipping window after failed fetch")
			continue
		}
		if table.Empty() {
			metrics.IncFetchWindow(metrics.ResultEmpty)
			continue
		}
		metrics.IncFetchWindow(metrics.ResultSuccess)
		parts = append(parts, table)
	}

	if len(parts) == 0 {
		return nil, ErrNoData
	}
	return Concat(parts...)
}
