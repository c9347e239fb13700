package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	apperrors "github.com/lorrc/team-kpi-backend/internal/core/errors"
	"github.com/lorrc/team-kpi-backend/internal/core/ports"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ChannelRepository reads the raw source tables.
type ChannelRepository struct {
	db *DB
}

var _ ports.ChannelSource = (*ChannelRepository)(nil)

func NewChannelRepository(db *DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// FetchRows returns the rows of one source table whose date falls in the
// inclusive range. Rows without a team lead survive a team scope.
func (r *ChannelRepository) FetchRows(ctx context.Context, table domain.SourceTable, q domain.RecordQuery) ([]domain.RawRow, error) {
	if _, ok := domain.LookupSource(table.Name); !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownSource, table.Name)
	}

	query, args := buildSourceQuery(table, q)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table.Name, classifyError(err))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table.Name, err)
	}

	out := make([]domain.RawRow, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", table.Name, err)
		}
		row := make(domain.RawRow, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table.Name, classifyError(err))
	}
	return out, nil
}

// buildSourceQuery compares on the first ten characters of the date column so
// that timestamp text still matches by day. Columns are qualified with the
// table name: a bare "col" that does not exist is read by SQLite as a string
// literal, while "table"."col" fails with no such column.
func buildSourceQuery(table domain.SourceTable, q domain.RecordQuery) (string, []any) {
	tbl := quoteIdent(table.Name)
	col := func(name string) string { return tbl + "." + quoteIdent(name) }

	cols := table.Columns()
	selected := make([]string, len(cols))
	for i, c := range cols {
		selected[i] = col(c) + " AS " + quoteIdent(c)
	}
	day := fmt.Sprintf("substr(%s, 1, 10)", col(table.DateColumn))

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s WHERE %s >= ? AND %s <= ?",
		strings.Join(selected, ", "), tbl, day, day)
	args := []any{q.StartDate, q.EndDate}

	if q.TeamLeadID != nil {
		leadCol := col(table.TeamLeadColumn)
		fmt.Fprintf(&sb, " AND (%s = ? OR %s IS NULL)", leadCol, leadCol)
		args = append(args, q.TeamLeadID.String())
	}
	fmt.Fprintf(&sb, " ORDER BY %s", col(table.DateColumn))
	return sb.String(), args
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR:
			return fmt.Errorf("%w: %w", apperrors.ErrSourceUnavailable, err)
		}
	}

	msg := err.Error()
	if strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column") {
		return fmt.Errorf("%w: %w", apperrors.ErrUnknownSource, err)
	}
	return err
}
