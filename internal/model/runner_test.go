package model

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejusbharadwaj/pvforecast/internal/weather"
)

type fakeModel struct {
	id       string
	predict  func(*Features) ([]float64, error)
	inFlight int32
	overlap  int32
}

func (m *fakeModel) ID() string { return m.id }

func (m *fakeModel) Predict(_ context.Context, f *Features) ([]float64, error) {
	if atomic.AddInt32(&m.inFlight, 1) > 1 {
		atomic.StoreInt32(&m.overlap, 1)
	}
	defer atomic.AddInt32(&m.inFlight, -1)
	if m.predict != nil {
		return m.predict(f)
	}
	out := make([]float64, len(f.Data))
	for i := range out {
		out[i] = float64(i) + 0.5
	}
	return out, nil
}

type fakeLoader struct {
	mu     sync.Mutex
	calls  int
	models []Model
	err    error
}

func (l *fakeLoader) Load(_ context.Context, name, alias string) (Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	m := l.models[0]
	if len(l.models) > 1 {
		l.models = l.models[1:]
	}
	return m, nil
}

func forecast() *weather.Response {
	d0 := time.Date(2025, 6, 28, 22, 0, 0, 0, time.UTC)
	return &weather.Response{
		Status: "OK",
		Data: []weather.DataParameter{
			{
				Parameter: "t_2m:C",
				Coordinates: []weather.Coordinate{
					{Lat: 30.556, Lon: 5.693083, Dates: []weather.DateValue{
						{Date: d0, Value: weather.Number(20.1)},
						{Date: d0.Add(2 * time.Hour), Value: weather.Number(18.2)},
					}},
				},
			},
		},
	}
}

func newTestRunner(loader Loader) *Runner {
	r := NewRunner(loader, RunnerConfig{}, logrus.New())
	r.now = func() time.Time { return time.Date(2025, 6, 28, 21, 0, 0, 0, time.UTC) }
	return r
}

func TestRunner_RunLoadsLazily(t *testing.T) {
	loader := &fakeLoader{models: []Model{&fakeModel{id: "pv_model/3"}}}
	runner := newTestRunner(loader)
	assert.Equal(t, "", runner.ModelID())

	out, err := runner.Run(context.Background(), forecast())
	require.NoError(t, err)

	assert.Equal(t, 1, loader.calls)
	assert.Equal(t, "1", out.PVID)
	assert.Equal(t, "pv_model/3", out.ModelID)
	assert.Equal(t, time.Date(2025, 6, 28, 21, 0, 0, 0, time.UTC), out.PredictionTime)
	require.Len(t, out.Predictions, 2)
	assert.Equal(t, 0.5, out.Predictions[0].EnergyProduced)
	assert.Equal(t, 1.5, out.Predictions[1].EnergyProduced)
	assert.Equal(t, 30.556, out.Predictions[0].Lat)

	_, err = runner.Run(context.Background(), forecast())
	require.NoError(t, err)
	assert.Equal(t, 1, loader.calls, "model is loaded once")
}

func TestRunner_LoadFailure(t *testing.T) {
	loader := &fakeLoader{err: errors.New("registry down")}
	runner := newTestRunner(loader)

	_, err := runner.Run(context.Background(), forecast())
	assert.ErrorIs(t, err, ErrModelUnavailable)

	assert.ErrorIs(t, runner.LoadModel(context.Background()), ErrModelUnavailable)
}

func TestRunner_LoadModelReplacesModel(t *testing.T) {
	loader := &fakeLoader{models: []Model{&fakeModel{id: "v1"}, &fakeModel{id: "v2"}}}
	runner := newTestRunner(loader)

	require.NoError(t, runner.LoadModel(context.Background()))
	assert.Equal(t, "v1", runner.ModelID())
	require.NoError(t, runner.LoadModel(context.Background()))
	assert.Equal(t, "v2", runner.ModelID())

	// a failed reload keeps the previous model
	loader.err = errors.New("boom")
	assert.Error(t, runner.LoadModel(context.Background()))
	assert.Equal(t, "v2", runner.ModelID())
}

func TestRunner_PredictionMismatch(t *testing.T) {
	m := &fakeModel{id: "v1", predict: func(*Features) ([]float64, error) { return []float64{1}, nil }}
	runner := newTestRunner(&fakeLoader{models: []Model{m}})

	_, err := runner.Run(context.Background(), forecast())
	assert.ErrorIs(t, err, ErrPredictionMismatch)
}

func TestRunner_PredictError(t *testing.T) {
	boom := errors.New("scoring server down")
	m := &fakeModel{id: "v1", predict: func(*Features) ([]float64, error) { return nil, boom }}
	runner := newTestRunner(&fakeLoader{models: []Model{m}})

	_, err := runner.Run(context.Background(), forecast())
	assert.ErrorIs(t, err, boom)
}

func TestRunner_EmptyForecast(t *testing.T) {
	m := &fakeModel{id: "v1", predict: func(*Features) ([]float64, error) {
		return nil, errors.New("must not be called")
	}}
	runner := newTestRunner(&fakeLoader{models: []Model{m}})

	out, err := runner.Run(context.Background(), &weather.Response{})
	require.NoError(t, err)
	assert.Empty(t, out.Predictions)
}

func TestRunner_ConcurrentRunsAreSerialized(t *testing.T) {
	m := &fakeModel{id: "v1", predict: func(f *Features) ([]float64, error) {
		time.Sleep(5 * time.Millisecond)
		return make([]float64, len(f.Data)), nil
	}}
	loader := &fakeLoader{models: []Model{m}}
	runner := newTestRunner(loader)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := runner.Run(context.Background(), forecast())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(0), atomic.LoadInt32(&m.overlap))
	assert.Equal(t, 1, loader.calls)
}

func TestBuildFeatures(t *testing.T) {
	d := time.Date(2025, 6, 28, 22, 0, 0, 0, time.UTC)
	sunrise := time.Date(2025, 6, 28, 4, 31, 0, 0, time.UTC)
	records := []weather.FlattenedWeather{
		{Lat: 1, Lon: 2, Date: d, Fields: map[string]weather.Value{
			"t_2m":    weather.Number(20.1),
			"sunrise": weather.Timestamp(sunrise),
			"other":   weather.Number(3),
		}},
	}

	f := BuildFeatures(records)
	require.Len(t, f.Data, 1)
	assert.Equal(t, FeatureColumns, f.Columns)

	row := f.Data[0]
	assert.Len(t, row, len(f.Columns))
	assert.Equal(t, 1.0, row[0])
	assert.Equal(t, "2025-06-28T22:00:00Z", row[2])

	idx := func(name string) int {
		for i, c := range f.Columns {
			if c == name {
				return i
			}
		}
		return -1
	}
	assert.Equal(t, 20.1, row[idx("t_2m")])
	assert.Equal(t, "2025-06-28T04:31:00Z", row[idx("sunrise")])
	assert.Nil(t, row[idx("uv")])
	assert.Equal(t, -1, idx("other"))
}
