package ledger

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotDates(t *testing.T) {
	tests := []struct {
		name string
		ref  time.Time
		want []string
	}{
		{
			name: "from a Saturday",
			ref:  time.Date(2025, time.November, 1, 10, 0, 0, 0, time.UTC),
			want: []string{
				"2025-11-02", "2025-11-09", "2025-11-16", "2025-11-23", "2025-11-30",
				"2025-12-07", "2025-12-14", "2025-12-21", "2025-12-28",
			},
		},
		{
			name: "a Sunday includes itself",
			ref:  time.Date(2025, time.December, 21, 23, 59, 0, 0, time.UTC),
			want: []string{"2025-12-21", "2025-12-28"},
		},
		{
			name: "last Sunday of the year",
			ref:  time.Date(2025, time.December, 28, 0, 0, 0, 0, time.UTC),
			want: []string{"2025-12-28"},
		},
		{
			name: "no Sunday left",
			ref:  time.Date(2025, time.December, 29, 8, 0, 0, 0, time.UTC),
			want: []string{},
		},
		{
			name: "year ending on a Sunday",
			ref:  time.Date(2023, time.December, 25, 0, 0, 0, 0, time.UTC),
			want: []string{"2023-12-31"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SlotDates(tt.ref)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSlotDatesUsesLocalCalendarDate(t *testing.T) {
	// Monday morning in Sydney is still Sunday in UTC.
	sydney := time.FixedZone("AEST", 10*60*60)
	ref := time.Date(2025, time.November, 3, 5, 0, 0, 0, sydney)

	got := SlotDates(ref)
	require.NotEmpty(t, got)
	assert.Equal(t, "2025-11-09", got[0])
}

func TestSlotDatesProperties(t *testing.T) {
	ref := time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)
	dates := SlotDates(ref)
	require.NotEmpty(t, dates)

	assert.True(t, slices.IsSorted(dates))
	var prev time.Time
	for i, key := range dates {
		d, err := ParseDateKey(key)
		require.NoError(t, err)
		assert.Equal(t, time.Sunday, d.Weekday(), key)
		assert.Equal(t, 2026, d.Year(), key)
		if i > 0 {
			assert.Equal(t, 7*24*time.Hour, d.Sub(prev), key)
		}
		prev = d
	}
}

func TestCalendarWeekday(t *testing.T) {
	cal := Calendar{Weekday: time.Thursday}
	got := cal.Dates(time.Date(2025, time.November, 20, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"2025-11-20", "2025-11-27", "2025-12-04", "2025-12-11", "2025-12-18", "2025-12-25"}, got)
}

func TestCalendarSeasonEnd(t *testing.T) {
	cal := Calendar{
		Weekday: time.Sunday,
		SeasonEnd: func(ref time.Time) time.Time {
			return time.Date(ref.Year(), time.November, 30, 0, 0, 0, 0, time.UTC)
		},
	}
	got := cal.Dates(time.Date(2025, time.November, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"2025-11-16", "2025-11-23", "2025-11-30"}, got)
}

func TestSlotsStopsEarly(t *testing.T) {
	var got []string
	for key := range DefaultCalendar.Slots(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		got = append(got, key)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"2025-01-05", "2025-01-12"}, got)
}

func TestCalendarContains(t *testing.T) {
	ref := time.Date(2025, time.November, 1, 10, 0, 0, 0, time.UTC)
	cal := DefaultCalendar

	assert.True(t, cal.Contains(ref, "2025-11-02"))
	assert.True(t, cal.Contains(ref, "2025-12-28"))
	assert.False(t, cal.Contains(ref, "2025-11-03"), "not a Sunday")
	assert.False(t, cal.Contains(ref, "2025-10-26"), "in the past")
	assert.False(t, cal.Contains(ref, "2026-01-04"), "next year")
	assert.False(t, cal.Contains(ref, "11/02/2025"))
}

func TestLongDate(t *testing.T) {
	assert.Equal(t, "Sunday, November 2, 2025", LongDate("2025-11-02"))
	assert.Equal(t, "Thursday, November 27, 2025", LongDate("2025-11-27"))
	assert.Equal(t, "someday", LongDate("someday"))
}

func TestParseWeekday(t *testing.T) {
	wd, err := ParseWeekday(" thursday ")
	require.NoError(t, err)
	assert.Equal(t, time.Thursday, wd)

	_, err = ParseWeekday("Funday")
	assert.Error(t, err)
}
