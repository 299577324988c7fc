package types

import (
	"fmt"
	"time"
)

// SupportedIntervals are the interval lengths (in minutes) a scenario may use.
var SupportedIntervals = []int{15, 30, 60}

// TimeSeries is an ordered sequence of numeric values, one per interval,
// aligned to a calendar year. All calendar arithmetic uses fixed-length
// (24 hour) days in UTC so a year always has DaysInYear*24*60/interval steps.
type TimeSeries struct {
	Year            int       `json:"year" yaml:"year"`
	IntervalMinutes int       `json:"intervalMinutes" yaml:"interval_minutes"`
	Values          []float64 `json:"values" yaml:"values"`
}

// DaysInYear returns the number of calendar days in the given year.
func DaysInYear(year int) int {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

// IsLeapYear reports whether the given year is a leap year.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// StepsPerDay returns the number of intervals in one day at the given
// interval length.
func StepsPerDay(intervalMinutes int) int {
	return 24 * 60 / intervalMinutes
}

// ExpectedSteps returns the number of intervals in a full year at the given
// interval length.
func ExpectedSteps(year, intervalMinutes int) int {
	return DaysInYear(year) * StepsPerDay(intervalMinutes)
}

// NewTimeSeries validates that values covers the full year at the given
// interval length and wraps it in a TimeSeries.
func NewTimeSeries(year, intervalMinutes int, values []float64) (TimeSeries, error) {
	if err := validateInterval(intervalMinutes); err != nil {
		return TimeSeries{}, err
	}
	if want := ExpectedSteps(year, intervalMinutes); len(values) != want {
		return TimeSeries{}, &ConfigurationError{
			Field:  "values",
			Reason: fmt.Sprintf("expected %d values for year %d at %d-minute intervals, got %d", want, year, intervalMinutes, len(values)),
		}
	}
	return TimeSeries{Year: year, IntervalMinutes: intervalMinutes, Values: values}, nil
}

// ZeroSeries returns a full-year series of zeros.
func ZeroSeries(year, intervalMinutes int) TimeSeries {
	return TimeSeries{
		Year:            year,
		IntervalMinutes: intervalMinutes,
		Values:          make([]float64, ExpectedSteps(year, intervalMinutes)),
	}
}

func validateInterval(intervalMinutes int) error {
	for _, m := range SupportedIntervals {
		if intervalMinutes == m {
			return nil
		}
	}
	return &ConfigurationError{
		Field:  "intervalMinutes",
		Reason: fmt.Sprintf("unsupported interval %d (supported: %v)", intervalMinutes, SupportedIntervals),
	}
}

// Len returns the number of intervals in the series.
func (ts TimeSeries) Len() int { return len(ts.Values) }

// StepHours returns the length of one interval in hours.
func (ts TimeSeries) StepHours() float64 {
	return float64(ts.IntervalMinutes) / 60.0
}

// TimestampAt returns the start time of interval i.
func (ts TimeSeries) TimestampAt(i int) time.Time {
	start := time.Date(ts.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start.Add(time.Duration(i) * time.Duration(ts.IntervalMinutes) * time.Minute)
}

// IndexOf returns the interval index containing the given time. Times before
// the year clamp to 0 and times after the year clamp to the last interval.
func (ts TimeSeries) IndexOf(t time.Time) int {
	start := time.Date(ts.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	i := int(t.Sub(start) / (time.Duration(ts.IntervalMinutes) * time.Minute))
	if i < 0 {
		return 0
	}
	if i >= ts.Len() {
		return ts.Len() - 1
	}
	return i
}

// Slice returns the values in [startStep, startStep+n). It never copies.
func (ts TimeSeries) Slice(startStep, n int) []float64 {
	return ts.Values[startStep : startStep+n]
}

// DemandChargeCategory identifies which kind of demand charge a mask belongs
// to. Masks within one category (and month/day) must partition, not overlap.
type DemandChargeCategory string

const (
	DemandCategoryMonthlyMax DemandChargeCategory = "monthly_max"
	DemandCategoryMonthlyTOU DemandChargeCategory = "monthly_tou"
	DemandCategoryDailyTOU   DemandChargeCategory = "daily_tou"
)

// DemandMask is a named 0/1 indicator series marking the timesteps that count
// toward one demand-charge period, together with the period's rate.
type DemandMask struct {
	Name         string               `json:"name"`
	Category     DemandChargeCategory `json:"category"`
	Month        time.Month           `json:"month"`
	Day          int                  `json:"day,omitempty"` // 0 unless Category is daily
	DollarsPerKW float64              `json:"dollarsPerKW"`
	Indicator    []float64            `json:"-"` // full-year 0/1 series
}
