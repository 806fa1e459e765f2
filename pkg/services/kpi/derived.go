package kpi

import (
	"context"
	"fmt"

	"github.com/de-tools/scorecard/pkg/models/domain"
	"github.com/rs/zerolog"
)

const DefaultWindowWeeks = 4

// DerivedAverageKpi averages the stored values of a base KPI over the
// trailing window [lastSunday - 7*WindowWeeks days, lastSunday].
type DerivedAverageKpi struct {
	BaseScorecard string
	BaseKpiNumber string
	RangeType     domain.RangeType
	WindowWeeks   int
	Reader        ObservationReader
}

func NewDerivedAverageKpi(reader ObservationReader, baseScorecard, baseKpiNumber string, windowWeeks int) *DerivedAverageKpi {
	return &DerivedAverageKpi{
		BaseScorecard: baseScorecard,
		BaseKpiNumber: baseKpiNumber,
		RangeType:     domain.RangeTypeWeekly,
		WindowWeeks:   windowWeeks,
		Reader:        reader,
	}
}

func (k *DerivedAverageKpi) window() int {
	if k.WindowWeeks <= 0 {
		return DefaultWindowWeeks
	}
	return k.WindowWeeks
}

// Details is the default field_details text for the derived KPI.
func (k *DerivedAverageKpi) Details() string {
	return fmt.Sprintf("Average of KPI %s over last %d weeks",
		domain.CanonicalKpiNumber(k.BaseKpiNumber), k.window())
}

func (k *DerivedAverageKpi) DependsOn() []Ref {
	return []Ref{{Scorecard: k.BaseScorecard, Number: k.BaseKpiNumber}}
}

func (k *DerivedAverageKpi) Compute(ctx context.Context, period domain.ReportingPeriod) (*float64, error) {
	if k.Reader == nil {
		return nil, fmt.Errorf("derived kpi has no reader: %w", domain.ErrInvalidConfig)
	}
	logger := zerolog.Ctx(ctx)

	end := period.LastSunday
	start := end.AddDate(0, 0, -7*k.window())

	observations, err := k.Reader.FetchObservationsInWindow(ctx, k.BaseScorecard, k.BaseKpiNumber, k.RangeType, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch base observations: %w", err)
	}

	var (
		sum   float64
		count int
	)
	for _, o := range domain.CurrentObservations(observations) {
		if o.FieldValue == nil {
			continue
		}
		sum += *o.FieldValue
		count++
	}

	logger.Debug().
		Str("base", Ref{Scorecard: k.BaseScorecard, Number: k.BaseKpiNumber}.String()).
		Str("start", start.Format(domain.DateLayout)).
		Str("end", end.Format(domain.DateLayout)).
		Int("observations", count).
		Msg("computed trailing average")

	if count == 0 {
		return value(0), nil
	}
	return value(sum / float64(count)), nil
}
