package sheet

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/de-tools/scorecard/pkg/models/domain"
	"github.com/xuri/excelize/v2"
)

// Sheet is a grid addressed by 1-based (row, column).
type Sheet interface {
	ReadCell(ctx context.Context, row, col int) (any, error)
	WriteCell(ctx context.Context, row, col int, value any) error
	// WriteRange writes values to an A1 range such as "E3:E5" in one update.
	WriteRange(ctx context.Context, a1Range string, values [][]any) error
	RowCount(ctx context.Context) (int, error)
	ColumnCount(ctx context.Context) (int, error)
}

// CellName converts 1-based coordinates to an A1 reference.
func CellName(row, col int) (string, error) {
	return excelize.CoordinatesToCellName(col, row)
}

// ColumnLetter converts a 1-based column index to letters: 1 is A, 27 is AA.
func ColumnLetter(col int) (string, error) {
	return excelize.ColumnNumberToName(col)
}

// ColumnRange is the A1 range covering rows [fromRow, toRow] of one column.
func ColumnRange(col, fromRow, toRow int) (string, error) {
	from, err := CellName(fromRow, col)
	if err != nil {
		return "", err
	}
	to, err := CellName(toRow, col)
	if err != nil {
		return "", err
	}
	return from + ":" + to, nil
}

var headerDateLayouts = []string{
	domain.DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"2-Jan-2006",
	"02-Jan-06",
	"01-02-06",
}

// NormalizeHeader renders a header cell for comparison with a period string:
// dates become YYYY-MM-DD, anything else is stringified and trimmed.
func NormalizeHeader(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case time.Time:
		return v.Format(domain.DateLayout)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.Format(domain.DateLayout)
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range headerDateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format(domain.DateLayout)
			}
		}
		return s
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// NormalizeKey renders a column-A cell as a comparable KPI number.
func NormalizeKey(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return domain.NormalizeKpiNumber(v)
	case float64:
		return domain.NormalizeKpiNumber(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return domain.NormalizeKpiNumber(fmt.Sprint(v))
	}
}

func sortKpiNumbers(numbers []string) {
	sort.Slice(numbers, func(i, j int) bool {
		return domain.LessKpiNumber(numbers[i], numbers[j])
	})
}
