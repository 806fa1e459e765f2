package kpi

import (
	"context"
	"time"

	"github.com/de-tools/scorecard/pkg/models/domain"
)

// Computation produces the value of one KPI for a resolved period.
// A nil value is persisted as NULL.
type Computation interface {
	Compute(ctx context.Context, period domain.ReportingPeriod) (*float64, error)
}

// ComputationFunc adapts a plain function to Computation.
type ComputationFunc func(ctx context.Context, period domain.ReportingPeriod) (*float64, error)

func (f ComputationFunc) Compute(ctx context.Context, period domain.ReportingPeriod) (*float64, error) {
	return f(ctx, period)
}

type ScalarFetcher interface {
	FetchScalar(ctx context.Context, query string, args ...any) (float64, error)
}

type ObservationReader interface {
	FetchObservationsInWindow(
		ctx context.Context,
		scorecard string,
		kpiNumber string,
		rangeType domain.RangeType,
		start time.Time,
		end time.Time,
	) ([]domain.Observation, error)
	FetchObservationsForPeriod(ctx context.Context, scorecard string, lastSunday time.Time) ([]domain.Observation, error)
}

// Dependent is implemented by computations that read other KPIs' stored values.
type Dependent interface {
	DependsOn() []Ref
}

// Ref identifies a KPI within a scorecard.
type Ref struct {
	Scorecard string
	Number    string
}

func (r Ref) Key() string {
	return r.Scorecard + "/" + domain.NormalizeKpiNumber(r.Number)
}

func (r Ref) String() string {
	return r.Scorecard + " KPI " + domain.CanonicalKpiNumber(r.Number)
}

func value(v float64) *float64 {
	return &v
}
