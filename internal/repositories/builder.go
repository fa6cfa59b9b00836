package repositories

import (
	"context"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// psql builds Postgres statements with $n placeholders
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// rowScanner is satisfied by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// execer is satisfied by *pgxpool.Pool and pgx.Tx
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// querier is the slice of *pgxpool.Pool the OTP repository needs
type querier interface {
	execer
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// utc normalizes a timestamp before it is written. Columns created outside
// the bundled migrations may be TIMESTAMP without time zone, which would
// otherwise store the server's wall clock and read it back as UTC.
func utc(t time.Time) time.Time {
	return t.UTC()
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
