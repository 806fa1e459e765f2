package kpi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/de-tools/scorecard/pkg/models/domain"
)

var ErrDuplicateKpi = errors.New("duplicate kpi")

// Definition is one registered KPI: where its value is stored and how it is computed.
type Definition struct {
	Scorecard    string
	Number       string
	RangeType    domain.RangeType
	FieldName    string
	FieldDetails string
	Computation  Computation
}

func (d Definition) Ref() Ref {
	return Ref{Scorecard: d.Scorecard, Number: d.Number}
}

// Details returns the configured field_details, falling back to the
// computation's own description when it has one.
func (d Definition) Details() *string {
	details := strings.TrimSpace(d.FieldDetails)
	if details == "" {
		if describer, ok := d.Computation.(interface{ Details() string }); ok {
			details = describer.Details()
		}
	}
	if details == "" {
		return nil
	}
	return &details
}

func (d Definition) validate() error {
	switch {
	case strings.TrimSpace(d.Scorecard) == "":
		return fmt.Errorf("kpi %q has no scorecard: %w", d.Number, domain.ErrInvalidConfig)
	case domain.NormalizeKpiNumber(d.Number) == "":
		return fmt.Errorf("kpi in %q has no number: %w", d.Scorecard, domain.ErrInvalidConfig)
	case d.Computation == nil:
		return fmt.Errorf("kpi %s has no computation: %w", d.Ref(), domain.ErrInvalidConfig)
	}
	return nil
}

// Registry is the ordered list of KPIs of a run. Registration order is
// execution order.
type Registry struct {
	definitions []Definition
	index       map[string]int
}

func NewRegistry(definitions ...Definition) (*Registry, error) {
	r := &Registry{index: make(map[string]int)}
	for _, d := range definitions {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(d Definition) error {
	if err := d.validate(); err != nil {
		return err
	}
	if r.index == nil {
		r.index = make(map[string]int)
	}
	key := d.Ref().Key()
	if _, ok := r.index[key]; ok {
		return fmt.Errorf("%s: %w", d.Ref(), ErrDuplicateKpi)
	}
	if d.RangeType == "" {
		d.RangeType = domain.RangeTypeWeekly
	}
	d.Number = domain.CanonicalKpiNumber(d.Number)
	r.index[key] = len(r.definitions)
	r.definitions = append(r.definitions, d)
	return nil
}

func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.definitions))
	copy(out, r.definitions)
	return out
}

func (r *Registry) Len() int {
	return len(r.definitions)
}

func (r *Registry) Lookup(scorecard, number string) (Definition, bool) {
	i, ok := r.index[Ref{Scorecard: scorecard, Number: number}.Key()]
	if !ok {
		return Definition{}, false
	}
	return r.definitions[i], true
}

// Stale is a dependent KPI registered before one of its bases: it reads
// the base value of the previous run.
type Stale struct {
	Dependent Ref
	Base      Ref
}

func (s Stale) String() string {
	return fmt.Sprintf("%s runs before its base %s", s.Dependent, s.Base)
}

// StaleDependencies lists dependents whose base KPIs are registered after
// them in the same registry. Bases not registered at all are not reported.
func (r *Registry) StaleDependencies() []Stale {
	var stale []Stale
	for i, d := range r.definitions {
		dependent, ok := d.Computation.(Dependent)
		if !ok {
			continue
		}
		for _, base := range dependent.DependsOn() {
			if j, ok := r.index[base.Key()]; ok && j > i {
				stale = append(stale, Stale{Dependent: d.Ref(), Base: r.definitions[j].Ref()})
			}
		}
	}
	return stale
}
