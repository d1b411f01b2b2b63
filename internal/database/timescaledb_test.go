package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejusbharadwaj/pvforecast/internal/models"
	"github.com/tejusbharadwaj/pvforecast/internal/weather"
)

func newMockRepo(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	pool, err := NewPool(context.Background(), db, 1)
	require.NoError(t, err)
	return NewRepository(db, pool), mock
}

func ptr(v float64) *float64 { return &v }

func TestPostgresRepo_UpsertEnergy(t *testing.T) {
	repo, mock := newMockRepo(t)
	t0 := time.Date(2024, 7, 9, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(5 * time.Minute)

	records := []models.EnergyRecord{
		{Time: t0, Produced: ptr(10), MinusAbsolute: ptr(100), PlusAbsolute: ptr(50)},
		{Time: t1, Produced: ptr(12), MinusAbsolute: ptr(104), PlusAbsolute: ptr(51), DiffMinus: ptr(4), DiffPlus: ptr(1)},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO energy"))
	prep.ExpectExec().
		WithArgs(t0, 10.0, nil, 100.0, 50.0, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs(t1, 12.0, nil, 104.0, 51.0, 4.0, 1.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpsertEnergy(context.Background(), records)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_UpsertEnergy_RollsBackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)
	t0 := time.Date(2024, 7, 9, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO energy"))
	prep.ExpectExec().WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := repo.UpsertEnergy(context.Background(), []models.EnergyRecord{{Time: t0, Produced: ptr(1)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upsert energy")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_UpsertWeather(t *testing.T) {
	repo, mock := newMockRepo(t)
	date := time.Date(2025, 6, 28, 22, 0, 0, 0, time.UTC)
	sunrise := time.Date(2025, 6, 28, 4, 31, 0, 0, time.UTC)

	records := []weather.FlattenedWeather{
		{
			Lat:  30.556,
			Lon:  5.693083,
			Date: date,
			Fields: map[string]weather.Value{
				"t_2m":    weather.Number(20.1),
				"uv":      weather.Number(1),
				"sunrise": weather.Timestamp(sunrise),
				"unknown": weather.Number(9),
			},
		},
	}

	args := []driver.Value{30.556, 5.693083, date}
	for _, c := range weather.Columns {
		switch c {
		case "t_2m":
			args = append(args, 20.1)
		case "uv":
			args = append(args, 1.0)
		case "sunrise":
			args = append(args, sunrise)
		default:
			args = append(args, nil)
		}
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO weather (lat, lon, date, wind_speed_10m"))
	prep.ExpectExec().WithArgs(args...).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpsertWeather(context.Background(), records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_EmptyBatchesSkipDatabase(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	assert.NoError(t, repo.UpsertWeather(ctx, nil))
	assert.NoError(t, repo.UpsertEnergy(ctx, nil))
	assert.NoError(t, repo.SavePredictions(ctx, models.PredictionResponse{PVID: "1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_SavePredictions(t *testing.T) {
	repo, mock := newMockRepo(t)
	runAt := time.Date(2025, 6, 28, 21, 0, 0, 0, time.UTC)
	date := time.Date(2025, 6, 28, 22, 0, 0, 0, time.UTC)

	resp := models.PredictionResponse{
		PVID:           "1",
		PredictionTime: runAt,
		ModelID:        "pv_model/3",
		Predictions: []models.Prediction{
			{Date: date, Lat: 47.1, Lon: 8.2, EnergyProduced: 420},
		},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO predictions"))
	prep.ExpectExec().
		WithArgs("1", 47.1, 8.2, date, runAt, "pv_model/3", 420.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SavePredictions(context.Background(), resp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Query(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Date(2024, 7, 9, 0, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	rows := sqlmock.NewRows([]string{"bucket_time", "agg_value"}).
		AddRow(start, 1.5).
		AddRow(start.Add(time.Hour), 2.5)

	mock.ExpectQuery(`SELECT\s+time_bucket\(\$4::interval, date\)`).
		WithArgs(start, end, "AVG", "1 hour").
		WillReturnRows(rows)

	data, err := repo.Query(context.Background(), start, end, "1h", "AVG")
	require.NoError(t, err)
	assert.Equal(t, []models.TimeSeriesData{
		{Time: start, Value: 1.5},
		{Time: start.Add(time.Hour), Value: 2.5},
	}, data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_QueryValidation(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	tests := []struct {
		name        string
		window      string
		aggregation string
		errMessage  string
	}{
		{name: "invalid window", window: "2h", aggregation: "AVG", errMessage: "invalid window: 2h"},
		{name: "invalid aggregation", window: "1h", aggregation: "MEDIAN", errMessage: "invalid aggregation type: MEDIAN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Query(context.Background(), now.Add(-time.Hour), now, tt.window, tt.aggregation)
			require.Error(t, err)
			assert.Equal(t, tt.errMessage, err.Error())
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_EnsureSchema(t *testing.T) {
	repo, mock := newMockRepo(t)

	for _, table := range []string{"weather", "energy", "predictions"} {
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS " + table)).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Close(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectClose()

	assert.NoError(t, repo.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWeatherUpsertCoversColumns(t *testing.T) {
	for _, c := range weather.Columns {
		assert.True(t, strings.Contains(weatherUpsertSQL, "EXCLUDED."+c), c)
	}
	assert.Contains(t, weatherUpsertSQL, "$18")
}

func TestNewPostgresRepo_UnsupportedDriver(t *testing.T) {
	_, err := NewPostgresRepo(context.Background(), "sqlite", "file::memory:", 1)
	assert.EqualError(t, err, "unsupported database driver: sqlite")
}
