package database

import (
	"database/sql"
)

// Queryable is the union of the sqlx methods our stores rely on. Both
// *sqlx.DB and *sqlx.Tx satisfy this interface, allowing store methods
// to run against a plain connection or inside a wrapped transaction.
type Queryable interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	Exec(query string, args ...interface{}) (sql.Result, error)
	NamedExec(query string, arg interface{}) (sql.Result, error)
	Rebind(query string) string
}
