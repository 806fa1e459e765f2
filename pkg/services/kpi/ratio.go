package kpi

import (
	"context"
	"fmt"

	"github.com/de-tools/scorecard/pkg/models/domain"
)

// RatioKpi divides the current-period values of two stored KPIs.
// A missing or zero denominator yields 0.
type RatioKpi struct {
	Numerator   Ref
	Denominator Ref
	Reader      ObservationReader
}

func NewRatioKpi(reader ObservationReader, numerator, denominator Ref) *RatioKpi {
	return &RatioKpi{
		Numerator:   numerator,
		Denominator: denominator,
		Reader:      reader,
	}
}

func (k *RatioKpi) DependsOn() []Ref {
	return []Ref{k.Numerator, k.Denominator}
}

func (k *RatioKpi) Compute(ctx context.Context, period domain.ReportingPeriod) (*float64, error) {
	if k.Reader == nil {
		return nil, fmt.Errorf("ratio kpi has no reader: %w", domain.ErrInvalidConfig)
	}

	num, err := k.current(ctx, k.Numerator, period)
	if err != nil {
		return nil, err
	}
	den, err := k.current(ctx, k.Denominator, period)
	if err != nil {
		return nil, err
	}

	if num == nil || den == nil || *den == 0 {
		return value(0), nil
	}
	return value(*num / *den), nil
}

func (k *RatioKpi) current(ctx context.Context, ref Ref, period domain.ReportingPeriod) (*float64, error) {
	observations, err := k.Reader.FetchObservationsForPeriod(ctx, ref.Scorecard, period.LastSunday)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}
	return domain.ValuesByKpi(observations)[domain.NormalizeKpiNumber(ref.Number)], nil
}
