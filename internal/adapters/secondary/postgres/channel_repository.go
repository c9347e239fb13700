package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	apperrors "github.com/lorrc/team-kpi-backend/internal/core/errors"
	"github.com/lorrc/team-kpi-backend/internal/core/ports"
	"github.com/lorrc/team-kpi-backend/internal/core/utils"
)

// ChannelRepository reads the raw source tables.
type ChannelRepository struct {
	tm *TransactionManager
}

var _ ports.ChannelSource = (*ChannelRepository)(nil)

func NewChannelRepository(pool *pgxpool.Pool) *ChannelRepository {
	return &ChannelRepository{tm: NewTransactionManager(pool)}
}

// FetchRows returns the rows of one source table whose date column falls in
// the inclusive range. With a team lead set, rows without a team lead are
// returned too so they can still be attributed through the agent directory.
func (r *ChannelRepository) FetchRows(ctx context.Context, table domain.SourceTable, q domain.RecordQuery) ([]domain.RawRow, error) {
	if _, ok := domain.LookupSource(table.Name); !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownSource, table.Name)
	}

	query, args := buildSourceQuery(table, q)

	var out []domain.RawRow
	err := r.tm.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		fields := rows.FieldDescriptions()
		out = make([]domain.RawRow, 0)
		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				return err
			}
			row := make(domain.RawRow, len(values))
			for i, fd := range fields {
				row[fd.Name] = utils.PlainValue(values[i])
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table.Name, classifyError(err))
	}
	return out, nil
}

// buildSourceQuery renders the select for one table. Identifiers come from the
// source registry and are quoted regardless.
func buildSourceQuery(table domain.SourceTable, q domain.RecordQuery) (string, []any) {
	cols := table.Columns()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	dateCol := pgx.Identifier{table.DateColumn}.Sanitize()

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s WHERE %s >= $1::date AND %s < $2::date + 1",
		strings.Join(quoted, ", "),
		pgx.Identifier{table.Name}.Sanitize(),
		dateCol, dateCol,
	)
	args := []any{q.StartDate, q.EndDate}

	if q.TeamLeadID != nil {
		leadCol := pgx.Identifier{table.TeamLeadColumn}.Sanitize()
		fmt.Fprintf(&sb, " AND (%s = $3 OR %s IS NULL)", leadCol, leadCol)
		args = append(args, utils.ToNullUUID(q.TeamLeadID))
	}
	fmt.Fprintf(&sb, " ORDER BY %s", dateCol)
	return sb.String(), args
}

// classifyError marks connection-level failures as ErrSourceUnavailable so the
// collector retries them, and missing tables or columns as ErrUnknownSource.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01", "42703": // undefined_table, undefined_column
			return fmt.Errorf("%w: %w", apperrors.ErrUnknownSource, err)
		case "57014", "40001", "40P01", "53300", "57P01", "57P03": // canceled, serialization, deadlock, too many connections, shutdown
			return fmt.Errorf("%w: %w", apperrors.ErrSourceUnavailable, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", apperrors.ErrSourceUnavailable, err)
	}
	return err
}
