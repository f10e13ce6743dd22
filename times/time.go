package times

import (
	"fmt"
	"time"
)

const (
	YearMonthDayLayout = "2006-01-02"
	YearMonthLayout    = "2006-01"
)

const (
	DayDuration  = 24 * time.Hour
	WeekDuration = 7 * DayDuration
)

// WeekStart returns Monday of the given ISO week at 00:00:00 UTC.
func WeekStart(year, week int) (*time.Time, error) {
	if year < 1970 || year > 3000 {
		return nil, fmt.Errorf("invalid year %v", year)
	}

	if week < 1 || week > 53 {
		return nil, fmt.Errorf("invalid week %v", week)
	}

	// Start from the middle of the year:
	t := time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC)

	// Roll back to Monday:
	if wd := t.Weekday(); wd == time.Sunday {
		t = t.AddDate(0, 0, -6)
	} else {
		t = t.AddDate(0, 0, -int(wd)+1)
	}

	// Difference in weeks:
	_, w := t.ISOWeek()
	t = t.AddDate(0, 0, (week-w)*7)

	return &t, nil
}

// DaysSinceLastMonday returns the numbers of days passed from the provided date to the last monday
func DaysSinceLastMonday(today time.Time) int {
	return int(today.Weekday()+6) % 7
}

// CurrentDayUTC returns the current day in the UTC time zone.
func CurrentDayUTC() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

// WeekWindow returns the closed reporting window for the week containing t:
// Monday 00:00:00 UTC through Sunday 23:59:59.999999 UTC.
func WeekWindow(t time.Time) (time.Time, time.Time) {
	day := t.UTC().Truncate(DayDuration)
	start := day.AddDate(0, 0, -DaysSinceLastMonday(day))
	end := start.AddDate(0, 0, 7).Add(-time.Microsecond)

	return start, end
}

// PrevWeekWindow returns the reporting window of the week before the one
// containing t. Consecutive calls over consecutive weeks never overlap.
func PrevWeekWindow(t time.Time) (time.Time, time.Time) {
	return WeekWindow(t.UTC().AddDate(0, 0, -7))
}
