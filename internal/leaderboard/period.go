package leaderboard

import "time"

// allTimeSpan keeps the all-time window open for practical purposes.
const allTimeSpan = 100

// Window returns the [start, end) window of period p containing now, in UTC.
// Weeks start on Monday.
func Window(p PeriodType, now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch p {
	case PeriodDaily:
		return day, day.AddDate(0, 0, 1)
	case PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	case PeriodMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	default:
		return time.Unix(0, 0).UTC(), now.AddDate(allTimeSpan, 0, 0)
	}
}
