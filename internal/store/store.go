package store

import "database/sql"

// querier is the subset of *sql.DB and *sql.Tx the stores run statements on.
// Operations that must land together expose a Tx variant that joins a
// caller-owned transaction through it.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}
