package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/de-tools/scorecard/pkg/models/domain"
	"github.com/de-tools/scorecard/pkg/services/kpi"
	"github.com/de-tools/scorecard/pkg/services/sheet"
)

type TableConfig struct {
	KpiWidth    int
	NameWidth   int
	ValueWidth  int
	StatusWidth int
	DetailWidth int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		KpiWidth:    6,
		NameWidth:   36,
		ValueWidth:  14,
		StatusWidth: 6,
		DetailWidth: 48,
	}
}

type Reporter struct {
	writer io.Writer
	config TableConfig
}

func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{
		writer: writer,
		config: DefaultTableConfig(),
	}
}

func (c *Reporter) funcs() template.FuncMap {
	return template.FuncMap{
		"formatRow": func(number, name, value, status, detail string) string {
			return fmt.Sprintf("| %-*s | %-*s | %*s | %-*s | %-*s |",
				c.config.KpiWidth, truncate(number, c.config.KpiWidth),
				c.config.NameWidth, truncate(name, c.config.NameWidth),
				c.config.ValueWidth, truncate(value, c.config.ValueWidth),
				c.config.StatusWidth, status,
				c.config.DetailWidth, truncate(detail, c.config.DetailWidth))
		},
		"separator": func() string {
			return fmt.Sprintf("+%s+%s+%s+%s+%s+",
				strings.Repeat("-", c.config.KpiWidth+2),
				strings.Repeat("-", c.config.NameWidth+2),
				strings.Repeat("-", c.config.ValueWidth+2),
				strings.Repeat("-", c.config.StatusWidth+2),
				strings.Repeat("-", c.config.DetailWidth+2))
		},
		"value":  formatValue,
		"errstr": errString,
	}
}

func (c *Reporter) execute(name, tmpl string, data any) error {
	t, err := template.New(name).Funcs(c.funcs()).Parse(tmpl)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	return t.Execute(c.writer, data)
}

// HandleRun prints one block per KPI followed by the batch verdict.
func (c *Reporter) HandleRun(summary domain.RunSummary) error {
	tmpl := `
Scorecard run {{.RunID}}
Year: {{.Period.Year}}  Week: {{.Period.WeekOfYear}}  Last Sunday: {{.Period.LastSundayString}}

{{separator}}
{{formatRow "KPI" "Field" "Value" "Status" "Error"}}
{{separator}}
{{range .Results}}{{formatRow .KpiNumber .FieldName (value .Value) (printf "%s" .Status) (errstr .Err)}}
{{end}}{{separator}}
{{if .OK}}PASS{{else}}FAIL{{end}}: {{.Succeeded}} succeeded, {{.Failed}} failed
`
	return c.execute("run", tmpl, summary)
}

func (c *Reporter) HandlePublish(result sheet.PublishResult) error {
	tmpl := `
Published period {{.Period}}
{{if .Range}}Column: {{.Column.Letter}}{{if .Column.Created}} (created){{end}}
Range: {{.Range}}
Rows written: {{.RowsWritten}}, matched: {{.Matched}}
{{- if .Unmatched}}
KPIs without a row: {{join .Unmatched ", "}}{{end}}
{{else}}Nothing to publish
{{end}}`
	t, err := template.New("publish").Funcs(c.funcs()).Funcs(template.FuncMap{"join": strings.Join}).Parse(tmpl)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	return t.Execute(c.writer, result)
}

func (c *Reporter) HandlePeriod(period domain.ReportingPeriod) error {
	tmpl := `Reference date: {{.ReferenceDate.Format "2006-01-02"}}
Last Sunday:    {{.LastSundayString}}
ISO year-week:  {{.YearWeek}}
Week bucket:    {{.WeekOfYear}}
`
	return c.execute("period", tmpl, period)
}

func (c *Reporter) HandleKpis(definitions []kpi.Definition) error {
	type row struct {
		Number  string
		Name    string
		Kind    string
		Details string
	}
	rows := make([]row, 0, len(definitions))
	for _, d := range definitions {
		details := ""
		if p := d.Details(); p != nil {
			details = *p
		}
		rows = append(rows, row{
			Number:  d.Number,
			Name:    d.FieldName,
			Kind:    kindOf(d.Computation),
			Details: details,
		})
	}

	tmpl := `{{separator}}
{{formatRow "KPI" "Field" "Kind" "" "Details"}}
{{separator}}
{{range .}}{{formatRow .Number .Name .Kind "" .Details}}
{{end}}{{separator}}
`
	return c.execute("kpis", tmpl, rows)
}

// truncate shortens s to width runes, marking the cut with "~".
func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width < 1 {
		return ""
	}
	return string(runes[:width-1]) + "~"
}

func kindOf(c kpi.Computation) string {
	switch c.(type) {
	case *kpi.RawKpi:
		return "query"
	case *kpi.DerivedAverageKpi:
		return "average"
	case *kpi.RatioKpi:
		return "ratio"
	default:
		return "custom"
	}
}

func formatValue(v *float64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%.2f", *v)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
