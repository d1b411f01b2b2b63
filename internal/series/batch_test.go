package series

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	start time.Time
	end   time.Time
}

type fakeSource struct {
	calls []recordedCall
	fail  map[int]error
	empty map[int]bool
}

func (f *fakeSource) fetch(_ context.Context, start, end time.Time) (*Table, error) {
	n := len(f.calls)
	f.calls = append(f.calls, recordedCall{start: start, end: end})
	if err := f.fail[n]; err != nil {
		return nil, err
	}
	if f.empty[n] {
		return NewTable("v"), nil
	}
	table := NewTable("v")
	_ = table.Append(start, float64(n))
	return table, nil
}

func day(d int) time.Time {
	return time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func TestWindows(t *testing.T) {
	tests := []struct {
		name   string
		start  time.Time
		end    time.Time
		span   int
		expect []Window
	}{
		{
			name:   "fits single window",
			start:  day(0),
			end:    day(10),
			span:   16,
			expect: []Window{{day(0), day(10)}},
		},
		{
			name:   "exactly max span",
			start:  day(0),
			end:    day(16),
			span:   16,
			expect: []Window{{day(0), day(16)}},
		},
		{
			name:   "twenty days",
			start:  day(0),
			end:    day(20),
			span:   16,
			expect: []Window{{day(0), day(15)}, {day(16), day(31)}},
		},
		{
			name:   "window starting on end",
			start:  day(0),
			end:    day(32),
			span:   16,
			expect: []Window{{day(0), day(15)}, {day(16), day(31)}, {day(32), day(47)}},
		},
		{
			name:  "inverted range",
			start: day(5),
			end:   day(0),
			span:  16,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, Windows(tt.start, tt.end, tt.span))
		})
	}
}

func TestFetchBatched_SingleWindow(t *testing.T) {
	src := &fakeSource{}

	table, err := FetchBatched(context.Background(), day(0), day(3), MaxQueryDays, src.fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	require.Len(t, src.calls, 1)
	assert.Equal(t, recordedCall{day(0), day(3)}, src.calls[0])
}

func TestFetchBatched_SingleWindowErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	src := &fakeSource{fail: map[int]error{0: boom}}

	_, err := FetchBatched(context.Background(), day(0), day(3), MaxQueryDays, src.fetch)
	assert.ErrorIs(t, err, boom)
}

func TestFetchBatched_TwoWindows(t *testing.T) {
	src := &fakeSource{}

	table, err := FetchBatched(context.Background(), day(0), day(20), MaxQueryDays, src.fetch)
	require.NoError(t, err)

	require.Len(t, src.calls, 2)
	assert.Equal(t, recordedCall{day(0), day(15)}, src.calls[0])
	assert.Equal(t, recordedCall{day(16), day(31)}, src.calls[1])

	col, _ := table.Column("v")
	assert.Equal(t, []float64{0, 1}, col)
}

func TestFetchBatched_SecondWindowFails(t *testing.T) {
	logger, hook := test.NewNullLogger()
	src := &fakeSource{fail: map[int]error{1: errors.New("upstream down")}}

	table, err := NewBatchFetcher(MaxQueryDays, logger).Fetch(context.Background(), day(0), day(20), src.fetch)
	require.NoError(t, err)

	require.Len(t, src.calls, 2)
	assert.Equal(t, recordedCall{day(0), day(15)}, src.calls[0])
	assert.Equal(t, recordedCall{day(16), day(31)}, src.calls[1])

	require.Equal(t, 1, table.Len())
	assert.True(t, day(0).Equal(table.Rows[0].Time))
	assert.Equal(t, []float64{0}, table.Rows[0].Values)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestFetchBatched_SkipsFailedAndEmptyWindows(t *testing.T) {
	logger, hook := test.NewNullLogger()
	src := &fakeSource{
		fail:  map[int]error{0: errors.New("upstream down")},
		empty: map[int]bool{1: true},
	}

	table, err := NewBatchFetcher(MaxQueryDays, logger).Fetch(context.Background(), day(0), day(40), src.fetch)
	require.NoError(t, err)

	assert.Len(t, src.calls, 3)
	assert.Equal(t, 1, table.Len())
	assert.True(t, day(32).Equal(table.Rows[0].Time))

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestFetchBatched_NoData(t *testing.T) {
	src := &fakeSource{
		fail:  map[int]error{0: errors.New("down")},
		empty: map[int]bool{1: true},
	}

	_, err := NewBatchFetcher(MaxQueryDays, logrus.New()).Fetch(context.Background(), day(0), day(20), src.fetch)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestFetchBatched_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{}

	_, err := FetchBatched(ctx, day(0), day(40), MaxQueryDays, src.fetch)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, src.calls)
}

func TestFetchBatched_InvalidArguments(t *testing.T) {
	src := &fakeSource{}

	_, err := FetchBatched(context.Background(), day(0), day(1), 0, src.fetch)
	assert.Error(t, err)
	_, err = FetchBatched(context.Background(), day(2), day(1), MaxQueryDays, src.fetch)
	assert.Error(t, err)
	assert.Empty(t, src.calls)
}
