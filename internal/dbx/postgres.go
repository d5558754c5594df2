package dbx

import (
	"database/sql"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err carries a PostgreSQL unique
// constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// pgtype.Map caches scan plans and is not safe for concurrent use.
var typeMaps = sync.Pool{New: func() any { return pgtype.NewMap() }}

// EncodeTextArray renders v as a PostgreSQL text[] literal, e.g. {GOOGLE,WORK}.
// Use it with an explicit ::text[] cast in the query.
func EncodeTextArray(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	m := typeMaps.Get().(*pgtype.Map)
	defer typeMaps.Put(m)

	buf, err := m.Encode(pgtype.TextArrayOID, pgtype.TextFormatCode, v, nil)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// TextArray returns a scanner that decodes a text[] column into dst. NULL
// decodes to an empty slice.
func TextArray(dst *[]string) sql.Scanner {
	return &textArrayScanner{dst: dst}
}

type textArrayScanner struct {
	dst *[]string
}

func (s *textArrayScanner) Scan(src any) error {
	m := typeMaps.Get().(*pgtype.Map)
	defer typeMaps.Put(m)

	if err := m.SQLScanner(s.dst).Scan(src); err != nil {
		return err
	}
	if *s.dst == nil {
		*s.dst = []string{}
	}
	return nil
}
