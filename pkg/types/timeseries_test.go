package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpectedSteps(t *testing.T) {
	// 2023 is a regular year, 2024 a leap year, 2000 a 400-divisible leap
	// year, 1900 a 100-divisible non-leap year.
	assert.Equal(t, 8760, ExpectedSteps(2023, 60))
	assert.Equal(t, 8784, ExpectedSteps(2024, 60))
	assert.Equal(t, 366*96, ExpectedSteps(2000, 15))
	assert.Equal(t, 365*48, ExpectedSteps(1900, 30))
}

func TestNewTimeSeries(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		ts, err := NewTimeSeries(2023, 60, make([]float64, 8760))
		require.NoError(t, err)
		assert.Equal(t, 8760, ts.Len())
		assert.Equal(t, 1.0, ts.StepHours())
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := NewTimeSeries(2024, 60, make([]float64, 8760))
		require.Error(t, err)
		var cfgErr *ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("bad interval", func(t *testing.T) {
		_, err := NewTimeSeries(2023, 45, make([]float64, 100))
		assert.Error(t, err)
	})
}

func TestTimestampAt(t *testing.T) {
	ts := ZeroSeries(2024, 15)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), ts.TimestampAt(0))
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 45, 0, 0, time.UTC), ts.TimestampAt(3))
	// leap day exists
	leap := time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC)
	i := ts.IndexOf(leap)
	assert.Equal(t, leap, ts.TimestampAt(i))
	// last step of the year
	assert.Equal(t, time.Date(2024, time.December, 31, 23, 45, 0, 0, time.UTC), ts.TimestampAt(ts.Len()-1))
}

func TestSliceAliases(t *testing.T) {
	ts := ZeroSeries(2023, 60)
	for i := range ts.Values {
		ts.Values[i] = float64(i)
	}
	window := ts.Slice(31*24, 24) // Feb 1
	require.Len(t, window, 24)
	assert.Equal(t, float64(31*24), window[0])
	// a slice views the backing array, it never copies
	window[0] = -1
	assert.Equal(t, -1.0, ts.Values[31*24])
}

func TestIndexOfClamps(t *testing.T) {
	ts := ZeroSeries(2023, 60)
	assert.Equal(t, 0, ts.IndexOf(time.Date(2022, time.December, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, ts.Len()-1, ts.IndexOf(time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)))
}
