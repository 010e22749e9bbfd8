package core

import (
	"context"
	"database/sql"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	// Transactor runs fn as a single unit of work.
	// fn receives the executor that repositories must be given to take part in the transaction;
	// it is rolled back when fn returns an error.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(exec DBExecutor) error) error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// AllowedOrderings drops the orderings whose field is not in allowed.
func AllowedOrderings(ords []DBOrdering, allowed ...string) []DBOrdering {
	res := make([]DBOrdering, 0, len(ords))
	for _, ord := range ords {
		for _, f := range allowed {
			if ord.Field == f {
				res = append(res, ord)
				break
			}
		}
	}
	return res
}
