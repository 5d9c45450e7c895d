package pg

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
)

// PostgreSQL error codes
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeUndefinedTable      = "42P01"
)

// sqlState returns the SQLSTATE of err, or "".
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	// bun sometimes flattens driver errors into text.
	msg := err.Error()
	for _, code := range []string{CodeUniqueViolation, CodeForeignKeyViolation, CodeUndefinedTable} {
		if strings.Contains(msg, "SQLSTATE "+code) {
			return code
		}
	}
	return ""
}

// translate maps driver errors onto store sentinels and migration kinds.
func translate(op string, err error) error {
	switch sqlState(err) {
	case CodeUniqueViolation:
		return migerr.Wrap(migerr.KindRow, op, fmt.Errorf("%w: %v", store.ErrConflict, err))
	case CodeUndefinedTable:
		return migerr.Wrap(migerr.KindRow, op, fmt.Errorf("%w: %v", store.ErrNotFound, err))
	case "":
		var connErr *pgconn.ConnectError
		if errors.As(err, &connErr) || pgconn.Timeout(err) {
			return migerr.Transient(op, err)
		}
	}
	return migerr.Wrap(migerr.KindRow, op, err)
}

func sortedColumns(row store.Row) []string {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}
