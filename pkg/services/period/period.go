package period

import (
	"fmt"
	"time"

	"github.com/de-tools/scorecard/pkg/models/domain"
)

// LastSunday returns the most recent Sunday on or before ref, as a UTC date.
func LastSunday(ref time.Time) time.Time {
	d := toDate(ref)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// ISOYearWeek returns the ISO-8601 year and week of t. Near year boundaries
// the ISO year can differ from the calendar year.
func ISOYearWeek(t time.Time) (int, int) {
	return toDate(t).ISOWeek()
}

// WeekOfYear returns the zero-padded ISO week of t.
func WeekOfYear(t time.Time) string {
	_, week := ISOYearWeek(t)
	return fmt.Sprintf("%02d", week)
}

// YearWeek returns the "YYYY-WW" label of t.
func YearWeek(t time.Time) string {
	year, week := ISOYearWeek(t)
	return fmt.Sprintf("%d-%02d", year, week)
}

// Resolve builds the reporting period for ref.
func Resolve(ref time.Time) domain.ReportingPeriod {
	sunday := LastSunday(ref)
	year, week := ISOYearWeek(sunday)
	return domain.ReportingPeriod{
		ReferenceDate: toDate(ref),
		LastSunday:    sunday,
		ISOYear:       year,
		ISOWeek:       week,
	}
}

// FromLastSunday rebuilds a period from a persisted Sunday.
func FromLastSunday(sunday time.Time) (domain.ReportingPeriod, error) {
	d := toDate(sunday)
	if d.Weekday() != time.Sunday {
		return domain.ReportingPeriod{}, fmt.Errorf("%s is a %s, not a Sunday", d.Format(domain.DateLayout), d.Weekday())
	}
	return Resolve(d), nil
}

func toDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
