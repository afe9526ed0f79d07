// Package pgtypes provides conversions between PostgreSQL column types
// and the time representations used by the domain model.
package pgtypes

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Timestamptz converts a time.Time into a non-NULL pgtype.Timestamptz.
func Timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// TimestamptzFromPtr converts an optional time into a pgtype.Timestamptz,
// mapping nil to NULL.
func TimestamptzFromPtr(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

// Time converts a pgtype.Timestamptz into a time.Time, mapping NULL to
// the zero time.
func Time(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time
}

// TimePtr converts a pgtype.Timestamptz into an optional time, mapping
// NULL to nil.
func TimePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}
