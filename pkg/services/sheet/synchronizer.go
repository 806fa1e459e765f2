package sheet

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var ErrColumnCreate = errors.New("failed to create period column")

type Settings struct {
	HeaderRow      int `mapstructure:"header_row"`
	BaseWeekColumn int `mapstructure:"base_week_column"`
	KpiRowStart    int `mapstructure:"kpi_row_start"`
}

func DefaultSettings() Settings {
	return Settings{
		HeaderRow:      1,
		BaseWeekColumn: 3,
		KpiRowStart:    2,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.HeaderRow <= 0 {
		s.HeaderRow = d.HeaderRow
	}
	if s.BaseWeekColumn <= 0 {
		s.BaseWeekColumn = d.BaseWeekColumn
	}
	if s.KpiRowStart <= 0 {
		s.KpiRowStart = s.HeaderRow + 1
	}
	return s
}

// Column is the resolved week column of a period.
type Column struct {
	Index   int
	Letter  string
	Created bool
}

// Row is one scanned KPI row and the value aligned to it.
type Row struct {
	Index   int
	Key     string
	Value   *float64
	Matched bool
}

type PublishResult struct {
	Period      string
	Column      Column
	Range       string
	RowsWritten int
	Matched     int
	// Unmatched holds KPI numbers with a value but no row in the sheet.
	Unmatched []string
}

type Synchronizer struct {
	sheet    Sheet
	settings Settings
}

func NewSynchronizer(sheet Sheet, settings Settings) (*Synchronizer, error) {
	if sheet == nil {
		return nil, fmt.Errorf("sheet is nil")
	}
	return &Synchronizer{
		sheet:    sheet,
		settings: settings.withDefaults(),
	}, nil
}

// ResolveColumn finds the leftmost week column whose header equals period,
// or writes the header into the first column after the last one.
func (s *Synchronizer) ResolveColumn(ctx context.Context, period string) (Column, error) {
	logger := zerolog.Ctx(ctx)

	lastCol, err := s.sheet.ColumnCount(ctx)
	if err != nil {
		return Column{}, fmt.Errorf("read column count: %w", err)
	}

	for col := s.settings.BaseWeekColumn; col <= lastCol; col++ {
		cell, err := s.sheet.ReadCell(ctx, s.settings.HeaderRow, col)
		if err != nil {
			return Column{}, fmt.Errorf("read header at column %d: %w", col, err)
		}
		if NormalizeHeader(cell) == period {
			letter, err := ColumnLetter(col)
			if err != nil {
				return Column{}, err
			}
			logger.Debug().Str("period", period).Str("column", letter).Msg("found period column")
			return Column{Index: col, Letter: letter}, nil
		}
	}

	col := lastCol + 1
	if col < s.settings.BaseWeekColumn {
		col = s.settings.BaseWeekColumn
	}
	letter, err := ColumnLetter(col)
	if err != nil {
		return Column{}, fmt.Errorf("period %s: %w: %v", period, ErrColumnCreate, err)
	}
	if err := s.sheet.WriteCell(ctx, s.settings.HeaderRow, col, period); err != nil {
		return Column{}, fmt.Errorf("period %s: %w: %v", period, ErrColumnCreate, err)
	}

	logger.Info().Str("period", period).Str("column", letter).Msg("created period column")
	return Column{Index: col, Letter: letter, Created: true}, nil
}

// AlignRows scans column A from the first KPI row down to the first empty
// cell and pairs each row with its value. Rows without a value stay empty.
func (s *Synchronizer) AlignRows(ctx context.Context, values map[string]*float64) ([]Row, error) {
	lookup := make(map[string]*float64, len(values))
	for k, v := range values {
		lookup[NormalizeKey(k)] = v
	}

	lastRow, err := s.sheet.RowCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("read row count: %w", err)
	}

	rows := make([]Row, 0)
	for r := s.settings.KpiRowStart; r <= lastRow; r++ {
		cell, err := s.sheet.ReadCell(ctx, r, 1)
		if err != nil {
			return nil, fmt.Errorf("read kpi number at row %d: %w", r, err)
		}
		key := NormalizeKey(cell)
		if key == "" {
			break
		}
		v, ok := lookup[key]
		rows = append(rows, Row{Index: r, Key: key, Value: v, Matched: ok})
	}
	return rows, nil
}

// Publish writes values into the period's column with a single range update.
func (s *Synchronizer) Publish(ctx context.Context, period string, values map[string]*float64) (PublishResult, error) {
	logger := zerolog.Ctx(ctx)
	result := PublishResult{Period: period}

	if len(values) == 0 {
		logger.Info().Str("period", period).Msg("nothing to publish")
		return result, nil
	}

	column, err := s.ResolveColumn(ctx, period)
	if err != nil {
		return result, err
	}
	result.Column = column

	rows, err := s.AlignRows(ctx, values)
	if err != nil {
		return result, err
	}
	result.Unmatched = unmatched(values, rows)

	if len(rows) == 0 {
		logger.Warn().Str("period", period).Msg("no kpi rows found in sheet")
		return result, nil
	}

	matrix := make([][]any, len(rows))
	for i, row := range rows {
		if row.Value != nil {
			matrix[i] = []any{*row.Value}
		} else {
			matrix[i] = []any{nil}
		}
		if row.Matched {
			result.Matched++
		}
	}

	a1, err := ColumnRange(column.Index, rows[0].Index, rows[len(rows)-1].Index)
	if err != nil {
		return result, err
	}
	if err := s.sheet.WriteRange(ctx, a1, matrix); err != nil {
		return result, fmt.Errorf("write period %s to %s: %w", period, a1, err)
	}
	result.Range = a1
	result.RowsWritten = len(rows)

	logger.Info().
		Str("period", period).
		Str("range", a1).
		Int("matched", result.Matched).
		Strs("unmatched", result.Unmatched).
		Msg("published period")
	return result, nil
}

func unmatched(values map[string]*float64, rows []Row) []string {
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		seen[r.Key] = struct{}{}
	}
	out := make([]string, 0)
	for k := range values {
		if _, ok := seen[NormalizeKey(k)]; !ok {
			out = append(out, NormalizeKey(k))
		}
	}
	sortKpiNumbers(out)
	return out
}
