package utils

import (
	"fmt"
	"regexp"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	TimeLayout  = "15:04"
	MonthLayout = "2006-01"
)

var (
	timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)
	datePattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)
)

// ValidTime reports whether s is an HH:MM clock time.
func ValidTime(s string) bool {
	return timePattern.MatchString(s)
}

// ValidDate reports whether s is a real YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// DaysBetween lists every date from..to inclusive.
func DaysBetween(from, to string) ([]string, error) {
	start, err := ParseDate(from)
	if err != nil {
		return nil, fmt.Errorf("parse from: %w", err)
	}
	end, err := ParseDate(to)
	if err != nil {
		return nil, fmt.Errorf("parse to: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("range end %s before start %s", to, from)
	}

	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days, nil
}

// AddMinutes shifts an HH:MM time. The second result is the number of days
// the shift crossed.
func AddMinutes(hhmm string, minutes int) (string, int, error) {
	t, err := time.Parse(TimeLayout, hhmm)
	if err != nil {
		return "", 0, err
	}
	total := t.Hour()*60 + t.Minute() + minutes
	days := total / (24 * 60)
	total %= 24 * 60
	if total < 0 {
		total += 24 * 60
		days--
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60), days, nil
}

// WeekBounds returns the Monday and Sunday of the ISO week containing t.
func WeekBounds(t time.Time) (time.Time, time.Time, int) {
	year, week := t.UTC().ISOWeek()
	start := FirstDayOfISOWeek(year, week)
	return start, start.AddDate(0, 0, 6), week
}

func FirstDayOfISOWeek(year, week int) time.Time {
	date := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	isoYear, isoWeek := date.ISOWeek()

	for date.Weekday() != time.Monday {
		date = date.AddDate(0, 0, -1)
		isoYear, isoWeek = date.ISOWeek()
	}

	for isoYear < year {
		date = date.AddDate(0, 0, 7)
		isoYear, isoWeek = date.ISOWeek()
	}

	for isoWeek < week {
		date = date.AddDate(0, 0, 7)
		_, isoWeek = date.ISOWeek()
	}

	return date
}

// MonthBounds returns the first and last date of a YYYY-MM month.
func MonthBounds(month string) (string, string, error) {
	first, err := time.ParseInLocation(MonthLayout, month, time.UTC)
	if err != nil {
		return "", "", err
	}
	last := first.AddDate(0, 1, -1)
	return first.Format(DateLayout), last.Format(DateLayout), nil
}

func FormatTimeForDisplay(utcTime string) string {
	return utcTime + " UTC"
}
