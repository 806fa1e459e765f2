package scorecard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/scorecard/pkg/models/domain"
	"github.com/de-tools/scorecard/pkg/services/kpi"
	"github.com/de-tools/scorecard/pkg/services/period"
	"github.com/de-tools/scorecard/pkg/services/sheet"
	"github.com/de-tools/scorecard/pkg/store/warehouse"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrNoPeriod = errors.New("no persisted period for the current week")

// Store is the part of the fact table the runner writes and publishes from.
type Store interface {
	InsertObservation(ctx context.Context, observation domain.Observation) error
	FetchPeriodForWeekBucket(ctx context.Context, scorecard string, weekOfYear string) (*time.Time, error)
	FetchObservationsForPeriod(ctx context.Context, scorecard string, lastSunday time.Time) ([]domain.Observation, error)
}

type Publisher interface {
	Publish(ctx context.Context, period string, values map[string]*float64) (sheet.PublishResult, error)
}

type Runner struct {
	store     Store
	publisher Publisher
	db        *sql.DB
	now       func() time.Time
}

type Option func(*Runner)

// WithClock fixes the reference time used to resolve the period.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

func WithPublisher(publisher Publisher) Option {
	return func(r *Runner) {
		r.publisher = publisher
	}
}

// WithDB stores each observation in its own transaction on db. The store
// must be backed by the same connection.
func WithDB(db *sql.DB) Option {
	return func(r *Runner) {
		r.db = db
	}
}

func NewRunner(store Store, opts ...Option) (*Runner, error) {
	if store == nil {
		return nil, fmt.Errorf("scorecard store is nil")
	}
	r := &Runner{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Period is the reporting period for the runner's current time.
func (r *Runner) Period() domain.ReportingPeriod {
	return period.Resolve(r.now())
}

// RunAll computes and stores every registered KPI for one period, in
// registration order. A failing KPI is recorded and the run moves on.
func (r *Runner) RunAll(ctx context.Context, registry *kpi.Registry) domain.RunSummary {
	return r.batch(ctx, registry.Definitions(), registry.StaleDependencies())
}

// RunOne computes and stores a single KPI for the current period.
func (r *Runner) RunOne(ctx context.Context, def kpi.Definition) domain.RunSummary {
	return r.batch(ctx, []kpi.Definition{def}, nil)
}

func (r *Runner) batch(ctx context.Context, defs []kpi.Definition, stale []kpi.Stale) domain.RunSummary {
	summary := domain.RunSummary{
		RunID:     uuid.NewString(),
		Period:    r.Period(),
		StartedAt: r.now(),
	}
	logger := zerolog.Ctx(ctx).With().
		Str("run_id", summary.RunID).
		Str("last_sunday", summary.Period.LastSundayString()).
		Logger()
	ctx = logger.WithContext(ctx)

	for _, s := range stale {
		logger.Warn().Str("dependency", s.String()).Msg("dependent kpi reads the previous period's base value")
	}

	for _, def := range defs {
		summary.Results = append(summary.Results, r.run(ctx, def, summary.Period))
	}
	summary.FinishedAt = r.now()

	event := logger.Info()
	if !summary.OK() {
		event = logger.Error()
	}
	event.
		Int("kpis", len(summary.Results)).
		Int("succeeded", summary.Succeeded()).
		Int("failed", summary.Failed()).
		Bool("ok", summary.OK()).
		Msg("scorecard run finished")
	return summary
}

func (r *Runner) run(ctx context.Context, def kpi.Definition, p domain.ReportingPeriod) domain.KpiResult {
	started := time.Now()
	result := domain.KpiResult{
		Scorecard: def.Scorecard,
		KpiNumber: domain.CanonicalKpiNumber(def.Number),
		FieldName: def.FieldName,
		Status:    domain.KpiStatusOK,
	}

	logger := zerolog.Ctx(ctx).With().
		Str("scorecard", result.Scorecard).
		Str("kpi_number", result.KpiNumber).
		Str("field_name", result.FieldName).
		Int("year", p.Year()).
		Str("week", p.WeekOfYear()).
		Str("last_sunday", p.LastSundayString()).
		Logger()

	err := r.compute(ctx, def, p, &result)
	result.Duration = time.Since(started)
	if err != nil {
		result.Status = domain.KpiStatusFailed
		result.Err = err
		logger.Error().Err(err).Str("status", string(result.Status)).Msg("kpi failed")
		return result
	}

	event := logger.Info().Str("status", string(result.Status)).Dur("duration", result.Duration)
	if result.Value != nil {
		event = event.Float64("value", *result.Value)
	}
	event.Msg("kpi stored")
	return result
}

func (r *Runner) compute(ctx context.Context, def kpi.Definition, p domain.ReportingPeriod, result *domain.KpiResult) error {
	if def.Computation == nil {
		return fmt.Errorf("kpi %s has no computation: %w", def.Ref(), domain.ErrInvalidConfig)
	}

	value, err := def.Computation.Compute(ctx, p)
	if err != nil {
		return fmt.Errorf("compute: %w", err)
	}
	result.Value = value

	rangeType := def.RangeType
	if rangeType == "" {
		rangeType = domain.RangeTypeWeekly
	}
	observation := domain.NewObservation(def.Scorecard, def.Number, rangeType, def.FieldName, def.Details(), p, value, r.now())
	if err := r.insert(ctx, observation); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

func (r *Runner) insert(ctx context.Context, observation domain.Observation) error {
	if r.db == nil {
		return r.store.InsertObservation(ctx, observation)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := r.store.InsertObservation(warehouse.WithTransaction(ctx, tx), observation); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			zerolog.Ctx(ctx).Warn().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit observation: %w", err)
	}
	return nil
}

// Publish writes the current observations of a period to the sheet.
func (r *Runner) Publish(ctx context.Context, scorecard string, lastSunday time.Time) (sheet.PublishResult, error) {
	if r.publisher == nil {
		return sheet.PublishResult{}, fmt.Errorf("no sheet configured: %w", domain.ErrInvalidConfig)
	}
	p, err := period.FromLastSunday(lastSunday)
	if err != nil {
		return sheet.PublishResult{}, err
	}
	logger := zerolog.Ctx(ctx)

	observations, err := r.store.FetchObservationsForPeriod(ctx, scorecard, p.LastSunday)
	if err != nil {
		return sheet.PublishResult{}, fmt.Errorf("read observations for %s: %w", p.LastSundayString(), err)
	}
	logger.Info().
		Str("scorecard", scorecard).
		Str("last_sunday", p.LastSundayString()).
		Int("observations", len(observations)).
		Msg("publishing period")

	return r.publisher.Publish(ctx, p.LastSundayString(), domain.ValuesByKpi(observations))
}

// PublishCurrent publishes the period the KPI writers used for this week,
// looked up by week bucket since they may run at a different time.
func (r *Runner) PublishCurrent(ctx context.Context, scorecard string) (sheet.PublishResult, error) {
	week := r.Period().WeekOfYear()

	lastSunday, err := r.store.FetchPeriodForWeekBucket(ctx, scorecard, week)
	if err != nil {
		return sheet.PublishResult{}, fmt.Errorf("resolve period for week %s: %w", week, err)
	}
	if lastSunday == nil {
		return sheet.PublishResult{}, fmt.Errorf("scorecard %s week %s: %w", scorecard, week, ErrNoPeriod)
	}
	return r.Publish(ctx, scorecard, *lastSunday)
}
