package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// LogFields describes err for structured logging beyond its message: the
// wrapped types, the failing step and any database driver diagnostics. Only
// keys with a value are returned.
func LogFields(err error) map[string]any {
	fields := map[string]any{}
	if err == nil {
		return fields
	}

	if te := As(err); te != nil {
		if step := stepOf(te.Details()); step != "" {
			fields["step"] = step
		}
	}

	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	fields["error_chain"] = chain

	for key, value := range driverFields(err) {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}

// driverFields reads the first postgres or sqlite error found in the chain.
func driverFields(err error) map[string]string {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return map[string]string{
			"pg_code":       pgxErr.Code,
			"pg_constraint": pgxErr.ConstraintName,
			"pg_table":      pgxErr.TableName,
			"pg_column":     pgxErr.ColumnName,
			"pg_detail":     pgxErr.Detail,
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return map[string]string{
			"pg_code":       string(pqErr.Code),
			"pg_constraint": pqErr.Constraint,
			"pg_table":      pqErr.Table,
			"pg_column":     pqErr.Column,
			"pg_detail":     pqErr.Detail,
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return map[string]string{
			"sqlite_code":     liteErr.Code.Error(),
			"sqlite_extended": liteErr.ExtendedCode.Error(),
		}
	}
	return nil
}

func stepOf(details any) string {
	switch d := details.(type) {
	case map[string]any:
		if s, ok := d["step"].(string); ok {
			return s
		}
	case map[string]string:
		return d["step"]
	}
	return ""
}
