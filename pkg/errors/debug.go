package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Diagnosis is the log-only view of an error: its wrap chain and, when a
// Postgres error sits in the chain, the server's SQLSTATE details. It never
// reaches HTTP responses.
type Diagnosis struct {
	Message string
	Code    Code
	Chain   []string

	SQLState   string
	Constraint string
	Table      string
	Column     string
	Detail     string
	PGMessage  string
}

// Transient reports whether Postgres rejected the statement for reasons a
// retry can fix: serialization failures, deadlocks and lost connections.
func (d Diagnosis) Transient() bool {
	switch {
	case d.SQLState == "":
		return false
	case strings.HasPrefix(d.SQLState, "40"), strings.HasPrefix(d.SQLState, "08"):
		return true
	case d.SQLState == "57P01", d.SQLState == "53300":
		return true
	}
	return false
}

// LogFields flattens the diagnosis for structured logging, skipping empty
// Postgres attributes.
func (d Diagnosis) LogFields() map[string]any {
	fields := map[string]any{
		"error":       d.Message,
		"error_chain": d.Chain,
	}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	for key, value := range map[string]string{
		"pg_code":       d.SQLState,
		"pg_constraint": d.Constraint,
		"pg_table":      d.Table,
		"pg_column":     d.Column,
		"pg_detail":     d.Detail,
		"pg_message":    d.PGMessage,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	if d.SQLState != "" {
		fields["pg_transient"] = d.Transient()
	}
	return fields
}

// Diagnose walks err's chain. Both pgx and lib/pq errors are recognised.
func Diagnose(err error) Diagnosis {
	if err == nil {
		return Diagnosis{}
	}
	d := Diagnosis{Message: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.SQLState = pgxErr.Code
		d.Constraint = pgxErr.ConstraintName
		d.Table = pgxErr.TableName
		d.Column = pgxErr.ColumnName
		d.Detail = pgxErr.Detail
		d.PGMessage = pgxErr.Message
	case errors.As(err, &pqErr):
		d.SQLState = string(pqErr.Code)
		d.Constraint = pqErr.Constraint
		d.Table = pqErr.Table
		d.Column = pqErr.Column
		d.Detail = pqErr.Detail
		d.PGMessage = pqErr.Message
	}
	return d
}
