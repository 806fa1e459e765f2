package kpi

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/de-tools/scorecard/pkg/models/domain"
	"github.com/rs/zerolog"
)

// QueryBuilder turns the period strings into a query and its arguments.
type QueryBuilder func(lastSunday, yearWeek string) (string, []any, error)

// RawKpi reads a single scalar from a data source. No row or a NULL scalar
// counts as 0; fetch errors are returned as is.
type RawKpi struct {
	Build   QueryBuilder
	Fetcher ScalarFetcher
}

func NewRawKpi(build QueryBuilder, fetcher ScalarFetcher) *RawKpi {
	return &RawKpi{
		Build:   build,
		Fetcher: fetcher,
	}
}

func (k *RawKpi) Compute(ctx context.Context, period domain.ReportingPeriod) (*float64, error) {
	if k.Build == nil || k.Fetcher == nil {
		return nil, fmt.Errorf("raw kpi is not configured: %w", domain.ErrInvalidConfig)
	}

	query, args, err := k.Build(period.LastSundayString(), period.YearWeek())
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("last_sunday", period.LastSundayString()).
		Str("query", query).
		Int("args", len(args)).
		Msg("fetching raw kpi")

	v, err := k.Fetcher.FetchScalar(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch scalar: %w", err)
	}
	return value(v), nil
}

// Named query parameters a configured KPI may bind positionally.
const (
	ParamLastSunday  = "last_sunday"
	ParamYearWeek    = "year_week"
	ParamWeekOfYear  = "week_of_year"
	ParamWindowStart = "window_start"
)

type queryData struct {
	LastSunday string
	YearWeek   string
	WeekOfYear string
	Year       int

	sunday time.Time
}

// WindowStart is the Sunday n weeks before the period's last Sunday.
func (d queryData) WindowStart(weeks int) string {
	return d.sunday.AddDate(0, 0, -7*weeks).Format(domain.DateLayout)
}

// TemplateQuery builds a QueryBuilder from SQL text. The text may reference
// {{.LastSunday}}, {{.YearWeek}}, {{.WeekOfYear}}, {{.Year}} and
// {{.WindowStart n}}; params are bound in order as query arguments.
func TemplateQuery(text string, params ...string) (QueryBuilder, error) {
	tmpl, err := template.New("kpi").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse query template: %w", err)
	}
	for _, p := range params {
		switch p {
		case ParamLastSunday, ParamYearWeek, ParamWeekOfYear, ParamWindowStart:
		default:
			return nil, fmt.Errorf("unknown query parameter %q: %w", p, domain.ErrInvalidConfig)
		}
	}

	return func(lastSunday, yearWeek string) (string, []any, error) {
		sunday, err := domain.ParseDate(lastSunday)
		if err != nil {
			return "", nil, err
		}
		_, week := sunday.ISOWeek()
		data := queryData{
			LastSunday: lastSunday,
			YearWeek:   yearWeek,
			WeekOfYear: fmt.Sprintf("%02d", week),
			Year:       sunday.Year(),
			sunday:     sunday,
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return "", nil, fmt.Errorf("render query: %w", err)
		}

		args := make([]any, 0, len(params))
		for _, p := range params {
			switch p {
			case ParamLastSunday:
				args = append(args, data.LastSunday)
			case ParamYearWeek:
				args = append(args, data.YearWeek)
			case ParamWeekOfYear:
				args = append(args, data.WeekOfYear)
			case ParamWindowStart:
				args = append(args, data.WindowStart(DefaultWindowWeeks))
			}
		}
		return buf.String(), args, nil
	}, nil
}
