package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the log-friendly view of an error chain.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`
	pgFields
}

// pgFields is what both postgres drivers report about a failed statement.
type pgFields struct {
	SQLState     string `json:"sql_state,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

// postgresFields finds a pgx or lib/pq error in the chain. pgx is what gorm
// uses; pq only shows up through goose.
func postgresFields(err error) (pgFields, bool) {
	if pgxErr := (*pgconn.PgError)(nil); errors.As(err, &pgxErr) {
		return pgFields{
			SQLState:     pgxErr.Code,
			PGConstraint: pgxErr.ConstraintName,
			PGTable:      pgxErr.TableName,
			PGColumn:     pgxErr.ColumnName,
			PGDetail:     pgxErr.Detail,
			PGMessage:    pgxErr.Message,
		}, true
	}
	if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		return pgFields{
			SQLState:     string(pqErr.Code),
			PGConstraint: pqErr.Constraint,
			PGTable:      pqErr.Table,
			PGColumn:     pqErr.Column,
			PGDetail:     pqErr.Detail,
			PGMessage:    pqErr.Message,
		}, true
	}
	return pgFields{}, false
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), Code: As(err).codeOrEmpty()}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.pgFields, _ = postgresFields(err)
	return d
}

// SQLState is "" unless the chain holds a postgres error.
func SQLState(err error) string {
	f, _ := postgresFields(err)
	return f.SQLState
}

func (e *Error) codeOrEmpty() Code {
	if e == nil {
		return ""
	}
	return e.code
}
