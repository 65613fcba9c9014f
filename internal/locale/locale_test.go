package locale

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalHour(t *testing.T) {
	// 2024-01-08 08:00 UTC is a Monday.
	nowUTC := time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		code    string
		hour    int
		weekday string
	}{
		{code: "ET", hour: 3, weekday: "mon"},
		{code: "CT", hour: 2, weekday: "mon"},
		{code: "MT", hour: 1, weekday: "mon"},
		{code: "PT", hour: 0, weekday: "mon"},
		{code: "BDT", hour: 14, weekday: "mon"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			hour, err := LocalHour(nowUTC, tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.hour, hour)

			weekday, err := LocalWeekday(nowUTC, tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.weekday, weekday)
		})
	}
}

func TestLocalHourCrossesMidnight(t *testing.T) {
	// 02:00 UTC Tuesday is still Monday evening in the US zones.
	nowUTC := time.Date(2024, 1, 9, 2, 0, 0, 0, time.UTC)

	hour, err := LocalHour(nowUTC, "ET")
	require.NoError(t, err)
	assert.Equal(t, 21, hour)

	weekday, err := LocalWeekday(nowUTC, "ET")
	require.NoError(t, err)
	assert.Equal(t, "mon", weekday)
}

func TestUnknownCodeFailsClosed(t *testing.T) {
	_, err := LocalHour(time.Now().UTC(), "UTC+14")
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "UTC+14", cfgErr.Code)

	_, err = LocalWeekday(time.Now().UTC(), "")
	assert.Error(t, err)
}

func TestCodes(t *testing.T) {
	codes := Codes()
	assert.Len(t, codes, 5)
	assert.ElementsMatch(t, []string{"ET", "CT", "MT", "PT", "BDT"}, codes)
}
