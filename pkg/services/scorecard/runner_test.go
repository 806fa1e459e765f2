package scorecard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/de-tools/scorecard/pkg/models/domain"
	"github.com/de-tools/scorecard/pkg/services/kpi"
	"github.com/de-tools/scorecard/pkg/services/sheet"
	"github.com/de-tools/scorecard/pkg/store/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) InsertObservation(ctx context.Context, observation domain.Observation) error {
	return m.Called(ctx, observation).Error(0)
}

func (m *mockStore) FetchPeriodForWeekBucket(ctx context.Context, scorecard string, weekOfYear string) (*time.Time, error) {
	args := m.Called(ctx, scorecard, weekOfYear)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *mockStore) FetchObservationsForPeriod(ctx context.Context, scorecard string, lastSunday time.Time) ([]domain.Observation, error) {
	args := m.Called(ctx, scorecard, lastSunday)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Observation), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, period string, values map[string]*float64) (sheet.PublishResult, error) {
	args := m.Called(ctx, period, values)
	return args.Get(0).(sheet.PublishResult), args.Error(1)
}

var wednesday = time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return wednesday }

func constant(v float64) kpi.Computation {
	return kpi.ComputationFunc(func(context.Context, domain.ReportingPeriod) (*float64, error) {
		return &v, nil
	})
}

func failing(err error) kpi.Computation {
	return kpi.ComputationFunc(func(context.Context, domain.ReportingPeriod) (*float64, error) {
		return nil, err
	})
}

func ptr(v float64) *float64 { return &v }

func TestNewRunner(t *testing.T) {
	_, err := NewRunner(nil)
	assert.Error(t, err)

	r, err := NewRunner(new(mockStore), WithClock(clock))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-07", r.Period().LastSundayString())
}

func TestRunner_RunAll(t *testing.T) {
	ctx := context.Background()

	t.Run("continues after a failing kpi", func(t *testing.T) {
		store := new(mockStore)
		store.On("InsertObservation", ctx, mock.MatchedBy(func(o domain.Observation) bool {
			return o.KpiNumber == "05" || o.KpiNumber == "16"
		})).Return(nil)

		registry, err := kpi.NewRegistry(
			kpi.Definition{Scorecard: "Success", Number: "5", FieldName: "Users", Computation: constant(3)},
			kpi.Definition{Scorecard: "Success", Number: "9", FieldName: "Churn", Computation: failing(errors.New("connection refused"))},
			kpi.Definition{Scorecard: "Success", Number: "16", FieldName: "Forms", Computation: constant(7)},
		)
		require.NoError(t, err)

		r, err := NewRunner(store, WithClock(clock))
		require.NoError(t, err)

		summary := r.RunAll(ctx, registry)

		assert.NotEmpty(t, summary.RunID)
		assert.Equal(t, "2024-01-07", summary.Period.LastSundayString())
		require.Len(t, summary.Results, 3)
		assert.True(t, summary.Results[0].OK())
		assert.Equal(t, domain.KpiStatusFailed, summary.Results[1].Status)
		assert.ErrorContains(t, summary.Results[1].Err, "connection refused")
		assert.Nil(t, summary.Results[1].Value)
		assert.True(t, summary.Results[2].OK())
		assert.Equal(t, 7.0, *summary.Results[2].Value)
		assert.Equal(t, 1, summary.Failed())
		assert.False(t, summary.OK())

		store.AssertNumberOfCalls(t, "InsertObservation", 2)
	})

	t.Run("store failure marks the kpi failed", func(t *testing.T) {
		store := new(mockStore)
		store.On("InsertObservation", ctx, mock.Anything).Return(errors.New("disk full"))

		registry, err := kpi.NewRegistry(kpi.Definition{Scorecard: "Success", Number: "5", Computation: constant(3)})
		require.NoError(t, err)

		r, err := NewRunner(store, WithClock(clock))
		require.NoError(t, err)

		summary := r.RunAll(ctx, registry)
		require.Len(t, summary.Results, 1)
		assert.False(t, summary.Results[0].OK())
		assert.ErrorContains(t, summary.Results[0].Err, "disk full")
	})

	t.Run("persists the observation", func(t *testing.T) {
		store := new(mockStore)
		var stored domain.Observation
		store.On("InsertObservation", ctx, mock.Anything).
			Run(func(args mock.Arguments) { stored = args.Get(1).(domain.Observation) }).
			Return(nil)

		avg := kpi.NewDerivedAverageKpi(nil, "Success", "16", 4)
		r, err := NewRunner(store, WithClock(clock))
		require.NoError(t, err)

		summary := r.RunOne(ctx, kpi.Definition{
			Scorecard: "Success", Number: "5", FieldName: "Users", RangeType: domain.RangeTypeMonthly,
			Computation: kpi.ComputationFunc(func(ctx context.Context, p domain.ReportingPeriod) (*float64, error) {
				return ptr(float64(p.ISOWeek)), nil
			}),
			FieldDetails: avg.Details(),
		})
		require.Len(t, summary.Results, 1)
		require.True(t, summary.Results[0].OK())
		assert.NotEmpty(t, summary.RunID)

		assert.Equal(t, "Success", stored.Scorecard)
		assert.Equal(t, "05", stored.KpiNumber)
		assert.Equal(t, time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), stored.LastSunday)
		assert.Equal(t, "01", stored.WeekOfYear)
		assert.Equal(t, 2024, stored.Year)
		assert.Equal(t, domain.RangeTypeMonthly, stored.RangeType)
		assert.Equal(t, wednesday, stored.PrintedAt)
		assert.Equal(t, 1.0, *stored.FieldValue)
		require.NotNil(t, stored.FieldDetails)
		assert.Equal(t, "Average of KPI 16 over last 4 weeks", *stored.FieldDetails)
	})
}

func TestRunner_Transactions(t *testing.T) {
	ctx := context.Background()
	inTx := mock.MatchedBy(func(c context.Context) bool {
		return warehouse.GetTransaction(c) != nil
	})

	t.Run("commits each observation", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		dbMock.ExpectBegin()
		dbMock.ExpectCommit()

		store := new(mockStore)
		store.On("InsertObservation", inTx, mock.Anything).Return(nil)

		r, err := NewRunner(store, WithClock(clock), WithDB(db))
		require.NoError(t, err)

		summary := r.RunOne(ctx, kpi.Definition{Scorecard: "Success", Number: "5", Computation: constant(3)})
		require.Len(t, summary.Results, 1)
		assert.True(t, summary.Results[0].OK())
		assert.NoError(t, dbMock.ExpectationsWereMet())
		store.AssertExpectations(t)
	})

	t.Run("rolls back a failed insert", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		dbMock.ExpectBegin()
		dbMock.ExpectRollback()

		store := new(mockStore)
		store.On("InsertObservation", inTx, mock.Anything).Return(errors.New("constraint violated"))

		r, err := NewRunner(store, WithClock(clock), WithDB(db))
		require.NoError(t, err)

		summary := r.RunOne(ctx, kpi.Definition{Scorecard: "Success", Number: "5", Computation: constant(3)})
		require.Len(t, summary.Results, 1)
		assert.ErrorContains(t, summary.Results[0].Err, "constraint violated")
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}

func TestRunner_Publish(t *testing.T) {
	ctx := context.Background()
	sunday := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)

	t.Run("maps current observations by kpi number", func(t *testing.T) {
		store := new(mockStore)
		store.On("FetchObservationsForPeriod", ctx, "Success", sunday).Return([]domain.Observation{
			{Scorecard: "Success", KpiNumber: "05", LastSunday: sunday, FieldValue: ptr(3)},
			{Scorecard: "Success", KpiNumber: "16", LastSunday: sunday, FieldValue: ptr(7)},
		}, nil)

		publisher := new(mockPublisher)
		publisher.On("Publish", ctx, "2024-01-07", map[string]*float64{"5": ptr(3), "16": ptr(7)}).
			Return(sheet.PublishResult{Period: "2024-01-07", RowsWritten: 3}, nil)

		r, err := NewRunner(store, WithClock(clock), WithPublisher(publisher))
		require.NoError(t, err)

		res, err := r.Publish(ctx, "Success", sunday)
		require.NoError(t, err)
		assert.Equal(t, 3, res.RowsWritten)
		publisher.AssertExpectations(t)
	})

	t.Run("not a sunday", func(t *testing.T) {
		r, err := NewRunner(new(mockStore), WithPublisher(new(mockPublisher)))
		require.NoError(t, err)

		_, err = r.Publish(ctx, "Success", wednesday)
		assert.Error(t, err)
	})

	t.Run("no publisher", func(t *testing.T) {
		r, err := NewRunner(new(mockStore))
		require.NoError(t, err)

		_, err = r.Publish(ctx, "Success", sunday)
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	})
}

func TestRunner_PublishCurrent(t *testing.T) {
	ctx := context.Background()
	persisted := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)

	t.Run("uses the persisted period of the week bucket", func(t *testing.T) {
		store := new(mockStore)
		store.On("FetchPeriodForWeekBucket", ctx, "Success", "01").Return(&persisted, nil)
		store.On("FetchObservationsForPeriod", ctx, "Success", persisted).Return([]domain.Observation{}, nil)

		publisher := new(mockPublisher)
		publisher.On("Publish", ctx, "2024-01-07", map[string]*float64{}).
			Return(sheet.PublishResult{Period: "2024-01-07"}, nil)

		r, err := NewRunner(store, WithClock(clock), WithPublisher(publisher))
		require.NoError(t, err)

		res, err := r.PublishCurrent(ctx, "Success")
		require.NoError(t, err)
		assert.Equal(t, "2024-01-07", res.Period)
		store.AssertExpectations(t)
	})

	t.Run("no period", func(t *testing.T) {
		store := new(mockStore)
		store.On("FetchPeriodForWeekBucket", ctx, "Success", "01").Return(nil, nil)

		r, err := NewRunner(store, WithClock(clock), WithPublisher(new(mockPublisher)))
		require.NoError(t, err)

		_, err = r.PublishCurrent(ctx, "Success")
		assert.ErrorIs(t, err, ErrNoPeriod)
	})
}
