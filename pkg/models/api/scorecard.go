package api

type Period struct {
	ReferenceDate string `json:"reference_date"`
	LastSunday    string `json:"last_sunday"`
	ISOYear       int    `json:"iso_year"`
	ISOWeek       int    `json:"iso_week"`
	YearWeek      string `json:"year_week"`
	WeekOfYear    string `json:"week_of_year"`
}

type Kpi struct {
	Scorecard string  `json:"scorecard"`
	Number    string  `json:"number"`
	FieldName string  `json:"field_name"`
	RangeType string  `json:"range_type"`
	Details   *string `json:"details,omitempty"`
}

type Observation struct {
	Scorecard    string   `json:"scorecard"`
	KpiNumber    string   `json:"kpi_number"`
	LastSunday   string   `json:"last_sunday"`
	WeekOfYear   string   `json:"week_of_year"`
	Year         int      `json:"year"`
	RangeType    string   `json:"range_type"`
	FieldName    string   `json:"field_name"`
	FieldDetails *string  `json:"field_details,omitempty"`
	FieldValue   *float64 `json:"field_value"`
	PrintDate    string   `json:"print_date"`
}

type PublishResult struct {
	Period      string   `json:"period"`
	Column      string   `json:"column,omitempty"`
	Created     bool     `json:"created"`
	Range       string   `json:"range,omitempty"`
	RowsWritten int      `json:"rows_written"`
	Matched     int      `json:"matched"`
	Unmatched   []string `json:"unmatched"`
}
