package core

import (
	"fmt"
	"time"
)

// Day truncates t to midnight of its calendar day in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DaysBetween counts whole calendar days from one day to another. Both arguments
// are expected to be outputs of Day in the same location; the count is taken on
// the calendar so DST transitions do not skew it.
func DaysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// ApplyCheckIn records a check-in at now on a copy of e and returns it.
//
// durationDays is the parent challenge's length; reaching it completes the
// enrollment. The returned enrollment keeps e.Version so the caller can use it
// as the precondition of a conditional write.
func ApplyCheckIn(e Enrollment, durationDays int, now time.Time, loc *time.Location) (Enrollment, error) {
	if e.Status != StatusActive {
		return e, fmt.Errorf("%w: enrollment is %s", ErrInvalidState, e.Status)
	}

	today := Day(now, loc)
	if e.LastCheckInDate == nil {
		e.CurrentStreak = 1
	} else {
		last := Day(*e.LastCheckInDate, loc)
		gap := DaysBetween(last, today)
		switch {
		case gap == 0:
			return e, ErrAlreadyCheckedIn
		case gap < 0:
			return e, fmt.Errorf("%w: check-in precedes the last recorded check-in", ErrInvalidState)
		case gap == 1:
			e.CurrentStreak++
		default:
			e.CurrentStreak = 1
		}
	}

	if e.CurrentStreak > e.LongestStreak {
		e.LongestStreak = e.CurrentStreak
	}
	e.CompletedDays++
	e.LastCheckInDate = &today

	if e.CompletedDays >= durationDays {
		e.Status = StatusCompleted
	}
	return e, nil
}
