package adapters

import (
	"github.com/de-tools/scorecard/pkg/models/api"
	"github.com/de-tools/scorecard/pkg/models/domain"
	"github.com/de-tools/scorecard/pkg/services/kpi"
	"github.com/de-tools/scorecard/pkg/services/sheet"
)

func MapDomainPeriodToApi(p domain.ReportingPeriod) api.Period {
	return api.Period{
		ReferenceDate: p.ReferenceDate.Format(domain.DateLayout),
		LastSunday:    p.LastSundayString(),
		ISOYear:       p.ISOYear,
		ISOWeek:       p.ISOWeek,
		YearWeek:      p.YearWeek(),
		WeekOfYear:    p.WeekOfYear(),
	}
}

func MapDefinitionToApiKpi(d kpi.Definition) api.Kpi {
	return api.Kpi{
		Scorecard: d.Scorecard,
		Number:    d.Number,
		FieldName: d.FieldName,
		RangeType: string(d.RangeType),
		Details:   d.Details(),
	}
}

func MapDomainObservationToApi(o domain.Observation) api.Observation {
	return api.Observation{
		Scorecard:    o.Scorecard,
		KpiNumber:    o.KpiNumber,
		LastSunday:   o.LastSunday.Format(domain.DateLayout),
		WeekOfYear:   o.WeekOfYear,
		Year:         o.Year,
		RangeType:    string(o.RangeType),
		FieldName:    o.FieldName,
		FieldDetails: o.FieldDetails,
		FieldValue:   o.FieldValue,
		PrintDate:    o.PrintedAt.Format(domain.PrintDateLayout),
	}
}

func MapPublishResultToApi(r sheet.PublishResult) api.PublishResult {
	unmatched := r.Unmatched
	if unmatched == nil {
		unmatched = []string{}
	}
	return api.PublishResult{
		Period:      r.Period,
		Column:      r.Column.Letter,
		Created:     r.Column.Created,
		Range:       r.Range,
		RowsWritten: r.RowsWritten,
		Matched:     r.Matched,
		Unmatched:   unmatched,
	}
}
