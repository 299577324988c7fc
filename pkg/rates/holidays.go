package rates

import "time"

// The observed holiday set is fixed: New Year's Day, Presidents' Day,
// Memorial Day, Independence Day, Labor Day, Veterans Day, Thanksgiving and
// Christmas. Utilities bill these days at off-peak rates when the tariff's
// holiday override is enabled.

// Holidays returns the observed holidays for the given year, in order.
func Holidays(year int) []time.Time {
	return []time.Time{
		time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		nthWeekday(year, time.February, time.Monday, 3),  // Presidents' Day
		lastWeekday(year, time.May, time.Monday),         // Memorial Day
		time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC),
		nthWeekday(year, time.September, time.Monday, 1), // Labor Day
		time.Date(year, time.November, 11, 0, 0, 0, 0, time.UTC), // Veterans Day
		nthWeekday(year, time.November, time.Thursday, 4), // Thanksgiving
		time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC),
	}
}

// holidaySet returns the holidays of a year keyed by yearday for O(1) lookup.
func holidaySet(year int) map[int]bool {
	set := make(map[int]bool, 8)
	for _, h := range Holidays(year) {
		set[h.YearDay()] = true
	}
	return set
}

// IsHoliday reports whether the calendar day containing t is an observed
// holiday.
func IsHoliday(t time.Time) bool {
	return holidaySet(t.Year())[t.YearDay()]
}

// nthWeekday returns the nth occurrence of the given weekday in the month.
func nthWeekday(year int, month time.Month, day time.Weekday, n int) time.Time {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for t.Weekday() != day {
		t = t.AddDate(0, 0, 1)
	}
	return t.AddDate(0, 0, 7*(n-1))
}

// lastWeekday returns the last occurrence of the given weekday in the month.
func lastWeekday(year int, month time.Month, day time.Weekday) time.Time {
	// start at the last day of the month and walk backwards
	t := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for t.Weekday() != day {
		t = t.AddDate(0, 0, -1)
	}
	return t
}
