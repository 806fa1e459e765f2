package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Source runs caller-supplied scalar queries against a warehouse connection.
type Source struct {
	db *sql.DB
}

func NewSource(db *sql.DB) (*Source, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &Source{db: db}, nil
}

func (s *Source) FetchScalar(ctx context.Context, query string, args ...any) (float64, error) {
	return FetchScalar(ctx, Conn(ctx, s.db), query, args...)
}

func (s *Source) Close() error {
	return s.db.Close()
}

// FetchScalar returns the first column of the first row of query. No row and
// a NULL value both read as 0; any other failure is returned to the caller.
func FetchScalar(ctx context.Context, q Querier, query string, args ...any) (float64, error) {
	logger := zerolog.Ctx(ctx)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("scalar query failed: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("scalar query failed: %w", err)
		}
		logger.Debug().Msg("scalar query returned no rows, reading as 0")
		return 0, nil
	}

	columns, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("scalar query columns: %w", err)
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("scalar query returned no columns")
	}
	raws := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range raws {
		dest[i] = &raws[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return 0, fmt.Errorf("scalar query failed: %w", err)
	}
	raw := raws[0]

	value, err := toFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("scalar query result: %w", err)
	}
	return value, nil
}

type float64er interface {
	Float64() float64
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return parseNumber(string(v))
	case string:
		return parseNumber(v)
	case float64er:
		return v.Float64(), nil
	case fmt.Stringer:
		return parseNumber(v.String())
	default:
		return 0, fmt.Errorf("unsupported scalar type %T", raw)
	}
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric scalar %q", s)
	}
	return v, nil
}
