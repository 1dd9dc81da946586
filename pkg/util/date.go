package util

import "time"

// DaysAgo returns UTC midnight n days before now. Used to bound daily-bar
// queries so a partial current day never shifts the window.
func DaysAgo(n int) time.Time {
	t := time.Now().UTC().AddDate(0, 0, -n)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
