package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

type RangeType string

const (
	RangeTypeWeekly  RangeType = "weekly"
	RangeTypeMonthly RangeType = "monthly"
)

// Observation is one fact row: the value of a KPI for a scorecard and a period.
// The natural key is (Scorecard, KpiNumber, LastSunday); the table is append-only,
// so several rows may share a key.
type Observation struct {
	ID           int64
	Year         int
	PrintedAt    time.Time
	Scorecard    string
	LastSunday   time.Time
	KpiNumber    string
	RangeType    RangeType
	WeekOfYear   string
	FieldName    string
	FieldDetails *string
	FieldValue   *float64
}

// NewObservation stamps a computed value with the period it belongs to.
func NewObservation(
	scorecard, kpiNumber string,
	rangeType RangeType,
	fieldName string,
	fieldDetails *string,
	period ReportingPeriod,
	value *float64,
	printedAt time.Time,
) Observation {
	return Observation{
		Year:         period.Year(),
		PrintedAt:    printedAt,
		Scorecard:    scorecard,
		LastSunday:   period.LastSunday,
		KpiNumber:    CanonicalKpiNumber(kpiNumber),
		RangeType:    rangeType,
		WeekOfYear:   period.WeekOfYear(),
		FieldName:    fieldName,
		FieldDetails: fieldDetails,
		FieldValue:   value,
	}
}

// NaturalKey identifies the observation independently of insertion order.
func (o Observation) NaturalKey() string {
	return o.Scorecard + "|" + NormalizeKpiNumber(o.KpiNumber) + "|" + o.LastSunday.Format(DateLayout)
}

// NewerThan reports whether o supersedes other for the same natural key:
// latest PrintedAt wins, insertion id breaks ties.
func (o Observation) NewerThan(other Observation) bool {
	if !o.PrintedAt.Equal(other.PrintedAt) {
		return o.PrintedAt.After(other.PrintedAt)
	}
	return o.ID > other.ID
}

// CurrentObservations keeps a single observation per natural key and returns
// them ordered by period, then numerically by KPI number.
func CurrentObservations(observations []Observation) []Observation {
	latest := make(map[string]Observation, len(observations))
	for _, o := range observations {
		key := o.NaturalKey()
		if cur, ok := latest[key]; !ok || o.NewerThan(cur) {
			latest[key] = o
		}
	}

	out := make([]Observation, 0, len(latest))
	for _, o := range latest {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastSunday.Equal(out[j].LastSunday) {
			return out[i].LastSunday.Before(out[j].LastSunday)
		}
		if out[i].Scorecard != out[j].Scorecard {
			return out[i].Scorecard < out[j].Scorecard
		}
		return LessKpiNumber(out[i].KpiNumber, out[j].KpiNumber)
	})
	return out
}

// NormalizeKpiNumber strips surrounding space and leading zeros. It never
// returns an empty string for a non-empty input: "000" becomes "0".
func NormalizeKpiNumber(number string) string {
	n := strings.TrimSpace(number)
	if n == "" {
		return ""
	}
	n = strings.TrimLeft(n, "0")
	if n == "" {
		return "0"
	}
	return n
}

// CanonicalKpiNumber is the zero-padded form stored in the fact table ("5" -> "05").
func CanonicalKpiNumber(number string) string {
	n := NormalizeKpiNumber(number)
	if len(n) == 1 && n[0] >= '0' && n[0] <= '9' {
		return "0" + n
	}
	return n
}

// LessKpiNumber orders KPI numbers numerically when both parse, lexically otherwise.
func LessKpiNumber(a, b string) bool {
	na, errA := strconv.Atoi(NormalizeKpiNumber(a))
	nb, errB := strconv.Atoi(NormalizeKpiNumber(b))
	if errA == nil && errB == nil {
		return na < nb
	}
	return NormalizeKpiNumber(a) < NormalizeKpiNumber(b)
}

// ValuesByKpi maps normalized KPI numbers to their values.
func ValuesByKpi(observations []Observation) map[string]*float64 {
	values := make(map[string]*float64, len(observations))
	for _, o := range observations {
		key := NormalizeKpiNumber(o.KpiNumber)
		if key == "" {
			continue
		}
		values[key] = o.FieldValue
	}
	return values
}
