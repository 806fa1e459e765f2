package gsheets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/de-tools/scorecard/pkg/models/domain"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	valueInputOption  = "USER_ENTERED"
	valueRenderOption = "FORMATTED_VALUE"
)

type Settings struct {
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	Worksheet       string `mapstructure:"worksheet"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// Worksheet is a Google Sheets tab. Cell reads are served from a snapshot
// taken on open and kept current by this worksheet's own writes.
type Worksheet struct {
	mu            sync.Mutex
	service       *sheets.Service
	spreadsheetID string
	title         string
	sheetID       int64
	gridColumns   int64
	values        [][]any
}

// Open authenticates with the service account credentials file unless
// client options are supplied, then loads the worksheet.
func Open(ctx context.Context, settings Settings, opts ...option.ClientOption) (*Worksheet, error) {
	if strings.TrimSpace(settings.SpreadsheetID) == "" {
		return nil, fmt.Errorf("spreadsheet id is not set: %w", domain.ErrInvalidConfig)
	}
	if strings.TrimSpace(settings.Worksheet) == "" {
		return nil, fmt.Errorf("worksheet name is not set: %w", domain.ErrInvalidConfig)
	}
	if len(opts) == 0 {
		if settings.CredentialsFile == "" {
			return nil, fmt.Errorf("google credentials file is not set: %w", domain.ErrMissingCredentials)
		}
		if _, err := os.Stat(settings.CredentialsFile); err != nil {
			return nil, fmt.Errorf("google credentials file %s: %w", settings.CredentialsFile, domain.ErrMissingCredentials)
		}
		opts = append(opts,
			option.WithCredentialsFile(settings.CredentialsFile),
			option.WithScopes(sheets.SpreadsheetsScope),
		)
	}

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	w := &Worksheet{
		service:       service,
		spreadsheetID: settings.SpreadsheetID,
		title:         settings.Worksheet,
	}
	if err := w.load(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Worksheet) load(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	spreadsheet, err := w.service.Spreadsheets.Get(w.spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to open spreadsheet %s: %w", w.spreadsheetID, err)
	}

	found := false
	for _, s := range spreadsheet.Sheets {
		if s.Properties == nil || s.Properties.Title != w.title {
			continue
		}
		w.sheetID = s.Properties.SheetId
		if s.Properties.GridProperties != nil {
			w.gridColumns = s.Properties.GridProperties.ColumnCount
		}
		found = true
		break
	}
	if !found {
		return fmt.Errorf("worksheet %q not found in spreadsheet %s: %w", w.title, w.spreadsheetID, domain.ErrInvalidConfig)
	}

	resp, err := w.service.Spreadsheets.Values.Get(w.spreadsheetID, quote(w.title)).
		ValueRenderOption(valueRenderOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to read worksheet %s: %w", w.title, err)
	}
	w.values = resp.Values

	logger.Debug().
		Str("spreadsheet", w.spreadsheetID).
		Str("worksheet", w.title).
		Int("rows", len(w.values)).
		Msg("worksheet loaded")
	return nil
}

func (w *Worksheet) ReadCell(_ context.Context, row, col int) (any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if row < 1 || col < 1 {
		return nil, fmt.Errorf("invalid cell (%d, %d)", row, col)
	}
	if row > len(w.values) || col > len(w.values[row-1]) {
		return nil, nil
	}
	v := w.values[row-1][col-1]
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return v, nil
}

func (w *Worksheet) WriteCell(ctx context.Context, row, col int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return w.WriteRange(ctx, cell+":"+cell, [][]any{{value}})
}

func (w *Worksheet) WriteRange(ctx context.Context, a1Range string, values [][]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	fromCol, fromRow, toCol, _, err := parseRange(a1Range)
	if err != nil {
		return err
	}
	if err := w.ensureColumns(ctx, int64(toCol)); err != nil {
		return err
	}

	body := make([][]any, len(values))
	for i, row := range values {
		body[i] = make([]any, len(row))
		for j, v := range row {
			// An empty string clears the cell on re-publish; nil would leave it as is.
			if v == nil {
				v = ""
			}
			body[i][j] = v
		}
	}

	_, err = w.service.Spreadsheets.Values.Update(w.spreadsheetID, quote(w.title)+"!"+a1Range, &sheets.ValueRange{
		MajorDimension: "ROWS",
		Values:         body,
	}).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update %s!%s: %w", w.title, a1Range, err)
	}

	for i, row := range body {
		for j, v := range row {
			w.set(fromRow+i, fromCol+j, v)
		}
	}
	return nil
}

func (w *Worksheet) ensureColumns(ctx context.Context, needed int64) error {
	if needed <= w.gridColumns {
		return nil
	}
	_, err := w.service.Spreadsheets.BatchUpdate(w.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AppendDimension: &sheets.AppendDimensionRequest{
				SheetId:   w.sheetID,
				Dimension: "COLUMNS",
				Length:    needed - w.gridColumns,
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to grow worksheet %s to %d columns: %w", w.title, needed, err)
	}
	zerolog.Ctx(ctx).Debug().Str("worksheet", w.title).Int64("columns", needed).Msg("worksheet grown")
	w.gridColumns = needed
	return nil
}

func (w *Worksheet) set(row, col int, v any) {
	for len(w.values) < row {
		w.values = append(w.values, nil)
	}
	for len(w.values[row-1]) < col {
		w.values[row-1] = append(w.values[row-1], "")
	}
	w.values[row-1][col-1] = v
}

func (w *Worksheet) RowCount(context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.values), nil
}

func (w *Worksheet) ColumnCount(context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cols := 0
	for _, r := range w.values {
		if len(r) > cols {
			cols = len(r)
		}
	}
	return cols, nil
}

func quote(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
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
	return fromCol, fromRow, toCol, toRow, nil
}
