package progress

import (
	"sort"
	"time"
)

// CivilDate drops the clock and the location of t, keeping its calendar day.
// Calendar days are represented as midnight UTC, the same way DATE columns
// are scanned.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekStart returns the Monday of the week containing day.
func WeekStart(day time.Time) time.Time {
	day = CivilDate(day)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func dateSet(dates []time.Time) map[time.Time]bool {
	set := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		set[CivilDate(d)] = true
	}
	return set
}

// CurrentStreak counts the consecutive days ending with today on which at
// least one workout was logged. Without a workout today the streak is 0.
func CurrentStreak(dates []time.Time, today time.Time) int {
	set := dateSet(dates)
	streak := 0
	for day := CivilDate(today); set[day]; day = day.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

// LongestStreak returns the longest run of consecutive workout days.
func LongestStreak(dates []time.Time) int {
	set := dateSet(dates)
	days := make([]time.Time, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Before(days[j])
	})

	longest, current := 0, 0
	for i, day := range days {
		if i > 0 && days[i-1].AddDate(0, 0, 1).Equal(day) {
			current++
		} else {
			current = 1
		}
		longest = max(longest, current)
	}
	return longest
}
