package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/core"
)

// postgres error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type transactor struct {
	db *sqlx.DB
}

var _ core.Transactor = (*transactor)(nil) // interface compliance check

func NewTransactor(db *sqlx.DB) *transactor {
	return &transactor{db: db}
}

// WithinTx gives fn a *sqlx.Tx; the transaction is committed only if fn succeeds.
func (t transactor) WithinTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back transaction: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

type repository struct {
	db *sqlx.DB
}

// getExec returns the transaction given by the service, if any.
func (repo repository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 {
		if ext, ok := svcExec[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return repo.db
}

func getRow(ctx context.Context, q sqlx.QueryerContext, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, q, dest, query, args...)
}

func selectRows(ctx context.Context, q sqlx.QueryerContext, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, q, dest, query, args...)
}

// execute runs b and returns the number of affected rows.
func execute(ctx context.Context, e sqlx.ExecerContext, b sq.Sqlizer) (int, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// orderBy renders ordering, mapping each field to its column; fields without a column are dropped.
func orderBy(ordering []core.DBOrdering, columns map[string]string) []string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		ord.Field = col
		clauses = append(clauses, ord.String())
	}
	return clauses
}

func pqCode(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return string(pqErr.Code)
	}
	return ""
}

func isNoRows(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}

// columns joins cols, each prefixed with prefix when not empty.
func columns(prefix string, cols ...string) string {
	if prefix == "" {
		return strings.Join(cols, ", ")
	}
	prefixed := make([]string, 0, len(cols))
	for _, c := range cols {
		prefixed = append(prefixed, prefix+"."+c)
	}
	return strings.Join(prefixed, ", ")
}

// validID tells whether id can be compared with a uuid column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
