package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing credentials")
)

type KpiStatus string

const (
	KpiStatusOK     KpiStatus = "ok"
	KpiStatusFailed KpiStatus = "failed"
)

// KpiResult is the outcome of computing and persisting one KPI.
type KpiResult struct {
	Scorecard string
	KpiNumber string
	FieldName string
	Value     *float64
	Status    KpiStatus
	Err       error
	Duration  time.Duration
}

func (r KpiResult) OK() bool {
	return r.Status == KpiStatusOK
}

// RunSummary collects per-KPI results of one batch run.
type RunSummary struct {
	RunID      string
	Period     ReportingPeriod
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []KpiResult
}

func (s RunSummary) Failed() int {
	failed := 0
	for _, r := range s.Results {
		if !r.OK() {
			failed++
		}
	}
	return failed
}

func (s RunSummary) Succeeded() int {
	return len(s.Results) - s.Failed()
}

// OK reports whether every KPI of the batch succeeded.
func (s RunSummary) OK() bool {
	return s.Failed() == 0
}
