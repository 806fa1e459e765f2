package domain

import (
	"fmt"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	PrintDateLayout = "2006-01-02 15:04:05"
)

// ReportingPeriod is the canonical weekly bucket a run reports against.
type ReportingPeriod struct {
	ReferenceDate time.Time
	LastSunday    time.Time
	ISOYear       int
	ISOWeek       int
}

func (p ReportingPeriod) LastSundayString() string {
	return p.LastSunday.Format(DateLayout)
}

// YearWeek returns the "YYYY-WW" label of the period using ISO week numbering.
func (p ReportingPeriod) YearWeek() string {
	return fmt.Sprintf("%d-%02d", p.ISOYear, p.ISOWeek)
}

// WeekOfYear returns the two-digit ISO week, used as the coarse bucket key.
func (p ReportingPeriod) WeekOfYear() string {
	return fmt.Sprintf("%02d", p.ISOWeek)
}

// Year is the calendar year of the period's Sunday, as persisted in the fact table.
func (p ReportingPeriod) Year() int {
	return p.LastSunday.Year()
}

func (p ReportingPeriod) String() string {
	return fmt.Sprintf("%s (%s)", p.LastSundayString(), p.YearWeek())
}

// ParseDate accepts ISO dates as well as timestamps whose first ten characters are an ISO date.
func ParseDate(value string) (time.Time, error) {
	if len(value) >= len(DateLayout) {
		if t, err := time.Parse(DateLayout, value[:len(DateLayout)]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
}
