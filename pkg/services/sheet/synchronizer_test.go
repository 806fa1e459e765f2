package sheet

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// grid is an in-memory Sheet.
type grid struct {
	cells      map[[2]int]any
	rangeCalls []string
	cellWrites int
	failWrites bool
}

func newGrid() *grid {
	return &grid{cells: make(map[[2]int]any)}
}

func (g *grid) set(row, col int, v any) *grid {
	g.cells[[2]int{row, col}] = v
	return g
}

func (g *grid) get(row, col int) any {
	return g.cells[[2]int{row, col}]
}

func (g *grid) ReadCell(_ context.Context, row, col int) (any, error) {
	return g.get(row, col), nil
}

func (g *grid) WriteCell(_ context.Context, row, col int, value any) error {
	if g.failWrites {
		return errors.New("permission denied")
	}
	g.cellWrites++
	g.set(row, col, value)
	return nil
}

func (g *grid) WriteRange(_ context.Context, a1Range string, values [][]any) error {
	if g.failWrites {
		return errors.New("permission denied")
	}
	g.rangeCalls = append(g.rangeCalls, a1Range)
	from, _, _ := strings.Cut(a1Range, ":")
	fromCol, fromRow, err := excelize.CellNameToCoordinates(from)
	if err != nil {
		return err
	}
	for i, row := range values {
		for j, v := range row {
			g.set(fromRow+i, fromCol+j, v)
		}
	}
	return nil
}

func (g *grid) RowCount(context.Context) (int, error) {
	n := 0
	for k := range g.cells {
		if k[0] > n {
			n = k[0]
		}
	}
	return n, nil
}

func (g *grid) ColumnCount(context.Context) (int, error) {
	n := 0
	for k := range g.cells {
		if k[1] > n {
			n = k[1]
		}
	}
	return n, nil
}

// scorecardGrid has headers in row 1 from column 3 and KPI numbers from row 3.
func scorecardGrid() *grid {
	return newGrid().
		set(1, 3, "2024-01-07").
		set(1, 4, "2024-01-14").
		set(3, 1, "05").
		set(4, 1, "16").
		set(5, 1, "32").
		set(7, 1, "99")
}

func settings() Settings {
	return Settings{HeaderRow: 1, BaseWeekColumn: 3, KpiRowStart: 3}
}

func ptr(v float64) *float64 { return &v }

func TestSynchronizer_ResolveColumn(t *testing.T) {
	ctx := context.Background()

	t.Run("existing column", func(t *testing.T) {
		g := scorecardGrid()
		s, err := NewSynchronizer(g, settings())
		require.NoError(t, err)

		col, err := s.ResolveColumn(ctx, "2024-01-07")
		require.NoError(t, err)
		assert.Equal(t, Column{Index: 3, Letter: "C"}, col)
		assert.Zero(t, g.cellWrites)
	})

	t.Run("new column after the last one", func(t *testing.T) {
		g := scorecardGrid()
		s, err := NewSynchronizer(g, settings())
		require.NoError(t, err)

		col, err := s.ResolveColumn(ctx, "2024-01-21")
		require.NoError(t, err)
		assert.Equal(t, Column{Index: 5, Letter: "E", Created: true}, col)
		assert.Equal(t, "2024-01-21", g.get(1, 5))

		again, err := s.ResolveColumn(ctx, "2024-01-21")
		require.NoError(t, err)
		assert.Equal(t, 5, again.Index)
		assert.False(t, again.Created)
	})

	t.Run("date-like headers", func(t *testing.T) {
		g := newGrid().
			set(1, 3, time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)).
			set(1, 4, " 1/14/2024 ")
		s, err := NewSynchronizer(g, settings())
		require.NoError(t, err)

		col, err := s.ResolveColumn(ctx, "2024-01-14")
		require.NoError(t, err)
		assert.Equal(t, 4, col.Index)
		assert.False(t, col.Created)
	})

	t.Run("leftmost match wins", func(t *testing.T) {
		g := scorecardGrid().set(1, 6, "2024-01-07")
		s, err := NewSynchronizer(g, settings())
		require.NoError(t, err)

		col, err := s.ResolveColumn(ctx, "2024-01-07")
		require.NoError(t, err)
		assert.Equal(t, 3, col.Index)
	})

	t.Run("columns before the base are ignored", func(t *testing.T) {
		g := newGrid().set(1, 2, "2024-01-07")
		s, err := NewSynchronizer(g, settings())
		require.NoError(t, err)

		col, err := s.ResolveColumn(ctx, "2024-01-07")
		require.NoError(t, err)
		assert.Equal(t, 3, col.Index)
		assert.True(t, col.Created)
	})

	t.Run("header write fails", func(t *testing.T) {
		g := scorecardGrid()
		g.failWrites = true
		s, err := NewSynchronizer(g, settings())
		require.NoError(t, err)

		_, err = s.ResolveColumn(ctx, "2024-01-21")
		assert.ErrorIs(t, err, ErrColumnCreate)
		assert.Contains(t, err.Error(), "2024-01-21")
	})
}

func TestSynchronizer_AlignRows(t *testing.T) {
	ctx := context.Background()
	s, err := NewSynchronizer(scorecardGrid(), settings())
	require.NoError(t, err)

	rows, err := s.AlignRows(ctx, map[string]*float64{"05": ptr(1), "16": ptr(2), "99": ptr(9)})
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, Row{Index: 3, Key: "5", Value: ptr(1), Matched: true}, rows[0])
	assert.Equal(t, Row{Index: 4, Key: "16", Value: ptr(2), Matched: true}, rows[1])
	assert.Equal(t, Row{Index: 5, Key: "32"}, rows[2])
}

func TestSynchronizer_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("writes one range", func(t *testing.T) {
		g := scorecardGrid()
		s, err := NewSynchronizer(g, settings())
		require.NoError(t, err)

		res, err := s.Publish(ctx, "2024-01-21", map[string]*float64{"05": ptr(1.5), "16": ptr(7), "99": ptr(9), "40": ptr(4)})
		require.NoError(t, err)

		assert.Equal(t, []string{"E3:E5"}, g.rangeCalls)
		assert.Equal(t, 1.5, g.get(3, 5))
		assert.Equal(t, 7.0, g.get(4, 5))
		assert.Nil(t, g.get(5, 5))
		assert.Nil(t, g.get(7, 5))

		assert.Equal(t, "E3:E5", res.Range)
		assert.True(t, res.Column.Created)
		assert.Equal(t, 3, res.RowsWritten)
		assert.Equal(t, 2, res.Matched)
		assert.Equal(t, []string{"40", "99"}, res.Unmatched)
	})

	t.Run("re-publish overwrites the same column", func(t *testing.T) {
		g := scorecardGrid()
		s, err := NewSynchronizer(g, settings())
		require.NoError(t, err)

		_, err = s.Publish(ctx, "2024-01-14", map[string]*float64{"16": ptr(1)})
		require.NoError(t, err)
		_, err = s.Publish(ctx, "2024-01-14", map[string]*float64{"16": ptr(2)})
		require.NoError(t, err)

		assert.Equal(t, []string{"D3:D5", "D3:D5"}, g.rangeCalls)
		assert.Equal(t, 2.0, g.get(4, 4))
		cols, _ := g.ColumnCount(ctx)
		assert.Equal(t, 4, cols)
	})

	t.Run("empty map leaves the sheet untouched", func(t *testing.T) {
		g := scorecardGrid()
		s, err := NewSynchronizer(g, settings())
		require.NoError(t, err)

		res, err := s.Publish(ctx, "2024-01-21", map[string]*float64{})
		require.NoError(t, err)
		assert.Empty(t, g.rangeCalls)
		assert.Zero(t, g.cellWrites)
		assert.Zero(t, res.RowsWritten)
	})

	t.Run("column creation failure aborts", func(t *testing.T) {
		g := scorecardGrid()
		g.failWrites = true
		s, err := NewSynchronizer(g, settings())
		require.NoError(t, err)

		_, err = s.Publish(ctx, "2024-01-21", map[string]*float64{"16": ptr(1)})
		assert.ErrorIs(t, err, ErrColumnCreate)
		assert.Empty(t, g.rangeCalls)
	})
}

type mockSheet struct {
	mock.Mock
}

func (m *mockSheet) ReadCell(ctx context.Context, row, col int) (any, error) {
	args := m.Called(ctx, row, col)
	return args.Get(0), args.Error(1)
}

func (m *mockSheet) WriteCell(ctx context.Context, row, col int, value any) error {
	return m.Called(ctx, row, col, value).Error(0)
}

func (m *mockSheet) WriteRange(ctx context.Context, a1Range string, values [][]any) error {
	return m.Called(ctx, a1Range, values).Error(0)
}

func (m *mockSheet) RowCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockSheet) ColumnCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestSynchronizer_Publish_RangeWriteFails(t *testing.T) {
	ctx := context.Background()
	m := new(mockSheet)
	m.On("ColumnCount", ctx).Return(3, nil)
	m.On("ReadCell", ctx, 1, 3).Return("2024-01-07", nil)
	m.On("RowCount", ctx).Return(3, nil)
	m.On("ReadCell", ctx, 3, 1).Return("16", nil)
	m.On("WriteRange", ctx, "C3:C3", [][]any{{7.0}}).Return(errors.New("quota exceeded"))

	s, err := NewSynchronizer(m, settings())
	require.NoError(t, err)

	_, err = s.Publish(ctx, "2024-01-07", map[string]*float64{"16": ptr(7)})
	assert.ErrorContains(t, err, "quota exceeded")
	m.AssertExpectations(t)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "2024-01-07", NormalizeHeader("2024-01-07 00:00:00"))
	assert.Equal(t, "2024-01-07", NormalizeHeader("01/07/2024"))
	assert.Equal(t, "Week", NormalizeHeader(" Week "))
	assert.Equal(t, "", NormalizeHeader(nil))
	assert.Equal(t, "45", NormalizeHeader(45.0))

	assert.Equal(t, "5", NormalizeKey("05"))
	assert.Equal(t, "0", NormalizeKey("000"))
	assert.Equal(t, "16", NormalizeKey(16.0))
	assert.Equal(t, "", NormalizeKey(" "))
	assert.Equal(t, "", NormalizeKey(nil))
}

func TestColumnHelpers(t *testing.T) {
	l, err := ColumnLetter(1)
	require.NoError(t, err)
	assert.Equal(t, "A", l)

	l, err = ColumnLetter(27)
	require.NoError(t, err)
	assert.Equal(t, "AA", l)

	r, err := ColumnRange(5, 3, 5)
	require.NoError(t, err)
	assert.Equal(t, "E3:E5", r)

	_, err = ColumnLetter(0)
	assert.Error(t, err)
}
