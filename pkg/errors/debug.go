package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Constraint kinds reported by Dump.
const (
	ConstraintUnique     = "unique"
	ConstraintForeignKey = "foreign_key"
	ConstraintCheck      = "check"
	ConstraintNotNull    = "not_null"
)

var pgConstraintKinds = map[string]string{
	"23505": ConstraintUnique,
	"23503": ConstraintForeignKey,
	"23514": ConstraintCheck,
	"23502": ConstraintNotNull,
}

// sqlite reports constraint failures only through the message text.
var sqliteConstraintKinds = map[string]string{
	"UNIQUE constraint failed":      ConstraintUnique,
	"FOREIGN KEY constraint failed": ConstraintForeignKey,
	"CHECK constraint failed":       ConstraintCheck,
	"NOT NULL constraint failed":    ConstraintNotNull,
}

// ErrorDump flattens an error chain into loggable fields.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`
	Expected   bool   `json:"expected,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`

	Chain []string `json:"chain,omitempty"`

	// ConstraintKind is set for integrity violations from either driver.
	ConstraintKind string `json:"constraint_kind,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		meta := MetadataFor(te.Code())
		d.Code = te.Code()
		d.Expected = meta.Expected
		d.Retryable = meta.Retryable
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGColumn = pgxErr.ColumnName
		d.PGDetail = pgxErr.Detail
		d.PGMessage = pgxErr.Message
	case errors.As(err, &pqErr):
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGColumn = pqErr.Column
		d.PGDetail = pqErr.Detail
		d.PGMessage = pqErr.Message
	}

	if d.PGCode != "" {
		d.ConstraintKind = pgConstraintKinds[d.PGCode]
		return d
	}
	for marker, kind := range sqliteConstraintKinds {
		if strings.Contains(d.TopMessage, marker) {
			d.ConstraintKind = kind
			break
		}
	}
	return d
}

// Fields renders the dump as a logger field map.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error_chain": d.Chain}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if d.Retryable {
		fields["retryable"] = true
	}
	if d.ConstraintKind != "" {
		fields["constraint_kind"] = d.ConstraintKind
	}
	if d.PGCode != "" {
		fields["pg_code"] = d.PGCode
		fields["pg_constraint"] = d.PGConstraint
		fields["pg_table"] = d.PGTable
		fields["pg_detail"] = d.PGDetail
	}
	return fields
}
