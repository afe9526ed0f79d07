package pgtypes

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamptzRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	ts := Timestamptz(now)
	assert.True(t, ts.Valid)
	assert.True(t, now.Equal(Time(ts)))
}

func TestTimestamptzFromPtr(t *testing.T) {
	t.Parallel()

	t.Run("nil_maps_to_null", func(t *testing.T) {
		t.Parallel()
		ts := TimestamptzFromPtr(nil)
		assert.False(t, ts.Valid)
		assert.Nil(t, TimePtr(ts))
	})

	t.Run("value_round_trips", func(t *testing.T) {
		t.Parallel()
		now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
		ts := TimestamptzFromPtr(&now)
		assert.True(t, ts.Valid)

		got := TimePtr(ts)
		require.NotNil(t, got)
		assert.True(t, now.Equal(*got))
	})
}

func TestTimeOfNull(t *testing.T) {
	t.Parallel()

	assert.True(t, Time(pgtype.Timestamptz{}).IsZero())
}
