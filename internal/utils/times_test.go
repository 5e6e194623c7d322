package utils

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestValidDateAndTime(t *testing.T) {
	require.True(t, ValidDate("2026-10-18"))
	require.False(t, ValidDate("2026-02-30"))
	require.False(t, ValidDate("18-10-2026"))

	require.True(t, ValidTime("00:00"))
	require.True(t, ValidTime("23:59"))
	require.False(t, ValidTime("24:00"))
	require.False(t, ValidTime("9:00"))
}

func TestDaysBetween(t *testing.T) {
	days, err := DaysBetween("2026-02-27", "2026-03-02")
	require.NoError(t, err)

	want := []string{"2026-02-27", "2026-02-28", "2026-03-01", "2026-03-02"}
	if diff := cmp.Diff(want, days); diff != "" {
		t.Fatalf("DaysBetween mismatch (-want +got):\n%s", diff)
	}

	_, err = DaysBetween("2026-03-02", "2026-03-01")
	require.Error(t, err)
}

func TestAddMinutes(t *testing.T) {
	cases := []struct {
		in      string
		minutes int
		want    string
		days    int
	}{
		{"09:15", 60, "10:15", 0},
		{"23:30", 60, "00:30", 1},
		{"00:10", -20, "23:50", -1},
	}
	for _, tc := range cases {
		got, days, err := AddMinutes(tc.in, tc.minutes)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, tc.in)
		require.Equal(t, tc.days, days, tc.in)
	}
}

func TestWeekBounds(t *testing.T) {
	start, end, week := WeekBounds(time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC))
	require.Equal(t, "2026-10-12", start.Format(DateLayout))
	require.Equal(t, "2026-10-18", end.Format(DateLayout))
	require.Equal(t, 42, week)

	start, _, week = WeekBounds(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Equal(t, "2026-12-28", start.Format(DateLayout))
	require.Equal(t, 53, week)
}

func TestMonthBounds(t *testing.T) {
	first, last, err := MonthBounds("2028-02")
	require.NoError(t, err)
	require.Equal(t, "2028-02-01", first)
	require.Equal(t, "2028-02-29", last)
}
