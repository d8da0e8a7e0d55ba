package utils

import (
	"fmt"
	"time"
)

// MonthRange returns [first instant of the month, first instant of the next month).
func MonthRange(year, month int, loc *time.Location) (time.Time, time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %d", month)
	}
	if year < 2000 || year > 2100 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid year %d", year)
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 1, 0), nil
}

// QuarterRange returns [first instant of the quarter, first instant of the next quarter).
func QuarterRange(year, quarter int, loc *time.Location) (time.Time, time.Time, error) {
	if quarter < 1 || quarter > 4 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid quarter %d", quarter)
	}
	from, _, err := MonthRange(year, (quarter-1)*3+1, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, from.AddDate(0, 3, 0), nil
}

// Period formats a year/month as YYYY-MM.
func Period(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}
