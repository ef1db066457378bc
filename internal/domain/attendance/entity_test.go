package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDay(t *testing.T) {
	got, err := ParseDay("2025-01-04T00:00:00.000Z")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-04", got)

	got, err = ParseDay("2025-01-04")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-04", got)

	_, err = ParseDay("04/01/2025")
	assert.Error(t, err)
}

func TestDateKey_UsesOwnLocation(t *testing.T) {
	lima := time.FixedZone("UTC-5", -5*3600)
	late := time.Date(2025, 1, 4, 22, 30, 0, 0, lima)

	assert.Equal(t, "2025-01-04", DateKey(late))
	assert.Equal(t, "2025-01-05", DateKey(late.UTC()))
}

func TestTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(9*3600+30*60), tod)
	assert.Equal(t, "09:30:00", tod.String())

	tod, err = ParseTimeOfDay("17:05:09")
	require.NoError(t, err)
	assert.Equal(t, "17:05:09", tod.String())

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)

	assert.Equal(t, "00:00:00", SentinelTime.String())
}

func TestTimeOfDay_On(t *testing.T) {
	at, err := TimeOfDay(9*3600).On("2025-01-04", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 4, 9, 0, 0, 0, time.UTC), at)

	_, err = SentinelTime.On("not-a-day", time.UTC)
	assert.Error(t, err)
}

func TestHistoryBucket_StatusOf(t *testing.T) {
	bucket := HistoryBucket{
		"2025-01-04": {{LinkID: "link-1", Date: "2025-01-04", Status: StatusAbsent}},
	}

	status, ok := bucket.StatusOf("link-1", time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.Equal(t, StatusAbsent, status)

	_, ok = bucket.StatusOf("link-2", time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)

	_, ok = bucket.StatusOf("link-1", time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}
