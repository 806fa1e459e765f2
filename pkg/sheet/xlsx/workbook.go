package xlsx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const DefaultWorksheet = "Scorecard"

// Worksheet is one sheet of a local workbook. Writes stay in memory until Close.
type Worksheet struct {
	mu    sync.Mutex
	file  *excelize.File
	path  string
	sheet string
	dirty bool
}

// Open opens the workbook at path, creating the file or the worksheet when
// they do not exist yet.
func Open(path, worksheet string) (*Worksheet, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("workbook path is empty")
	}
	if worksheet == "" {
		worksheet = DefaultWorksheet
	}

	f, err := excelize.OpenFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return create(path, worksheet)
	case err != nil:
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}

	w := &Worksheet{file: f, path: path, sheet: worksheet}
	idx, err := f.GetSheetIndex(worksheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to look up worksheet %s: %w", worksheet, err)
	}
	if idx < 0 {
		if _, err := f.NewSheet(worksheet); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to add worksheet %s: %w", worksheet, err)
		}
		w.dirty = true
	}
	return w, nil
}

func create(path, worksheet string) (*Worksheet, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), worksheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to name worksheet %s: %w", worksheet, err)
	}
	return &Worksheet{file: f, path: path, sheet: worksheet, dirty: true}, nil
}

func (w *Worksheet) Path() string {
	return w.path
}

func (w *Worksheet) Name() string {
	return w.sheet
}

func (w *Worksheet) ReadCell(_ context.Context, row, col int) (any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	v, err := w.file.GetCellValue(w.sheet, cell)
	if err != nil {
		return nil, fmt.Errorf("read %s!%s: %w", w.sheet, cell, err)
	}
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	return v, nil
}

func (w *Worksheet) WriteCell(_ context.Context, row, col int, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := w.file.SetCellValue(w.sheet, cell, value); err != nil {
		return fmt.Errorf("write %s!%s: %w", w.sheet, cell, err)
	}
	w.dirty = true
	return nil
}

func (w *Worksheet) WriteRange(_ context.Context, a1Range string, values [][]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	fromCol, fromRow, toCol, toRow, err := parseRange(a1Range)
	if err != nil {
		return err
	}
	if len(values) != toRow-fromRow+1 {
		return fmt.Errorf("range %s spans %d rows, got %d", a1Range, toRow-fromRow+1, len(values))
	}

	for i, row := range values {
		if len(row) > toCol-fromCol+1 {
			return fmt.Errorf("range %s spans %d columns, got %d", a1Range, toCol-fromCol+1, len(row))
		}
		cell, err := excelize.CoordinatesToCellName(fromCol, fromRow+i)
		if err != nil {
			return err
		}
		r := row
		if err := w.file.SetSheetRow(w.sheet, cell, &r); err != nil {
			return fmt.Errorf("write %s!%s: %w", w.sheet, cell, err)
		}
	}
	w.dirty = true
	return nil
}

func (w *Worksheet) RowCount(context.Context) (int, error) {
	rows, err := w.rows()
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (w *Worksheet) ColumnCount(context.Context) (int, error) {
	rows, err := w.rows()
	if err != nil {
		return 0, err
	}
	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	return cols, nil
}

func (w *Worksheet) rows() ([][]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows, err := w.file.GetRows(w.sheet)
	if err != nil {
		return nil, fmt.Errorf("read rows of %s: %w", w.sheet, err)
	}
	return rows, nil
}

// Save writes pending changes to disk.
func (w *Worksheet) Save(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.dirty {
		return nil
	}
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", w.path, err)
	}
	w.dirty = false
	zerolog.Ctx(ctx).Debug().Str("path", w.path).Msg("workbook saved")
	return nil
}

// Close saves pending changes and releases the workbook.
func (w *Worksheet) Close(ctx context.Context) error {
	saveErr := w.Save(ctx)
	if err := w.file.Close(); err != nil && saveErr == nil {
		return fmt.Errorf("failed to close workbook %s: %w", w.path, err)
	}
	return saveErr
}

// Discard releases the workbook without saving pending changes.
func (w *Worksheet) Discard() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.dirty = false
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close workbook %s: %w", w.path, err)
	}
	return nil
}

func parseRange(a1Range string) (fromCol, fromRow, toCol, toRow int, err error) {
	from, to, ok := strings.Cut(a1Range, ":")
	if !ok {
		to = from
	}
	if fromCol, fromRow, err = excelize.CellNameToCoordinates(from); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid range %q: %w", a1Range, err)
	}
	if toCol, toRow, err = excelize.CellNameToCoordinates(to); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid range %q: %w", a1Range, err)
	}
	if toCol < fromCol || toRow < fromRow {
		return 0, 0, 0, 0, fmt.Errorf("invalid range %q", a1Range)
	}
	return fromCol, fromRow, toCol, toRow, nil
}
