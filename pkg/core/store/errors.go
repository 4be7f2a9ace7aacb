package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// TableError is a structured persistence failure for one target table. The
// orchestrator aggregates these per file and withholds archival while any
// exist.
type TableError struct {
	Table string
	Err   error
}

func (e *TableError) Error() string {
	msg := fmt.Sprintf("table %q: %v", e.Table, e.Err)
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		msg += fmt.Sprintf(" (PostgreSQL code: %s)", pgErr.Code)
	}
	return msg
}

func (e *TableError) Unwrap() error { return e.Err }

func tableErr(table string, format string, args ...any) *TableError {
	return &TableError{Table: table, Err: fmt.Errorf(format, args...)}
}
