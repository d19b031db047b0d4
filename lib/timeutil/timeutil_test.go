package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadZone(t *testing.T) {
	loc, err := LoadZone("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = LoadZone("America/New_York")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())

	_, err = LoadZone("Mars/Olympus_Mons")
	assert.Error(t, err)
}

func TestStartAndEndOfDayAcrossZones(t *testing.T) {
	tokyo, err := LoadZone("Asia/Tokyo")
	require.NoError(t, err)

	// 20:00 UTC on March 10 is 05:00 on March 11 in Tokyo.
	at := time.Date(2025, time.March, 10, 20, 0, 0, 0, time.UTC)

	start := StartOfDay(at, tokyo)
	assert.Equal(t, "2025-03-11", start.Format(ISODate))
	assert.Equal(t, 0, start.Hour())

	end := EndOfDay(at, tokyo)
	assert.Equal(t, "2025-03-11", end.Format(ISODate))
	assert.True(t, end.Before(start.AddDate(0, 0, 1)))
	assert.Equal(t, 24*time.Hour-time.Nanosecond, end.Sub(start))
}

func TestISODateOnlyDependsOnZone(t *testing.T) {
	tokyo, err := LoadZone("Asia/Tokyo")
	require.NoError(t, err)

	at := time.Date(2025, time.March, 10, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-10", ISODateOnly(at, time.UTC))
	assert.Equal(t, "2025-03-11", ISODateOnly(at, tokyo))
}

func TestParseISODate(t *testing.T) {
	tokyo, err := LoadZone("Asia/Tokyo")
	require.NoError(t, err)

	day, err := ParseISODate("2025-03-11", tokyo)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.March, 11, 0, 0, 0, 0, tokyo), day)

	_, err = ParseISODate("11-03-2025", tokyo)
	assert.Error(t, err)
	_, err = ParseISODate("2025-3-11", tokyo)
	assert.Error(t, err)
}

func TestDateKeyIsUTCMidnight(t *testing.T) {
	key, err := DateKey("2025-03-11")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC), key)
}

func TestMidnightUTC(t *testing.T) {
	tokyo, err := LoadZone("Asia/Tokyo")
	require.NoError(t, err)

	// 05:00 March 11 in Tokyo is still March 10 in UTC.
	at := time.Date(2025, time.March, 11, 5, 0, 0, 0, tokyo)
	assert.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), MidnightUTC(at))

	// Already-midnight timestamps are fixed points.
	midnight := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, midnight, MidnightUTC(midnight))
}
