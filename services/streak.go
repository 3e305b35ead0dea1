package services

import (
	"time"

	"lore-machine/utils"
)

// NextStreak computes the streak after a submission at now. The gap is counted
// in calendar days in loc: same day keeps the streak (a first submission sets
// it to 1), the next day extends it, anything longer restarts at 1.
func NextStreak(last *time.Time, now time.Time, current, longest int, loc *time.Location) (int, int) {
	next := 1
	if last != nil {
		switch gap := utils.CalendarDaysBetween(*last, now, loc); {
		case gap <= 0:
			next = max(current, 1)
		case gap == 1:
			next = current + 1
		}
	}
	return next, max(longest, next)
}
