package engine

import (
	"time"

	errs "basket-trader/internal/errors"
	"basket-trader/internal/models"
)

// DateOnly truncates a time to midnight in its location. SIP scheduling
// works on calendar dates, never clock times.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextExecutionDate returns the execution date following today for the
// schedule's frequency. The result is always strictly after today.
//
// Daily advances one day. Weekly advances to the next occurrence of the
// schedule's weekday; when today already is that weekday it advances a
// full week, never same-day. Monthly advances to next month with the day
// clamped to that month's length, so a day-31 schedule lands on Feb 28
// (or 29) and recovers to the 31st in longer months.
func NextExecutionDate(s models.SIPSchedule, today time.Time) time.Time {
	today = DateOnly(today)

	switch s.Frequency {
	case models.SIPWeekly:
		days := (int(s.DayOfWeek) - int(today.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return today.AddDate(0, 0, days)

	case models.SIPMonthly:
		year, month, _ := today.Date()
		day := s.DayOfMonth
		if day <= 0 {
			day = today.Day()
		}
		if last := lastDayOfMonth(year, month+1, today.Location()); day > last {
			day = last
		}
		return time.Date(year, month+1, day, 0, 0, 0, 0, today.Location())

	default: // daily
		return today.AddDate(0, 0, 1)
	}
}

// ExecuteSIP applies one installment to the schedule for the given day.
// Execution is guarded: the schedule must be active, due, and not past
// its end date, and must not have an execution record for today already
// (alreadyRan, sourced from the persisted execution log). The returned
// schedule carries the incremented installment count, updated total and
// advanced next execution date; on any error the input is returned
// unchanged apart from the end-date completion transition.
func ExecuteSIP(s models.SIPSchedule, today time.Time, alreadyRan bool) (models.SIPSchedule, error) {
	today = DateOnly(today)

	if s.Status.Terminal() {
		return s, errs.ErrSIPTerminal
	}
	if s.Status != models.SIPActive {
		return s, errs.ErrSIPNotActive
	}
	if s.EndDate != nil && DateOnly(*s.EndDate).Before(today) {
		s.Status = models.SIPCompleted
		return s, errs.ErrSIPCompleted
	}
	if alreadyRan {
		return s, errs.ErrAlreadyExecutedToday
	}
	if today.Before(DateOnly(s.NextExecutionDate)) {
		return s, errs.ErrSIPNotDue
	}

	s.CompletedInstallments++
	s.TotalInvested = s.TotalInvested.Add(s.Amount)
	s.NextExecutionDate = NextExecutionDate(s, today)
	return s, nil
}

// PauseSIP transitions an active schedule to paused.
func PauseSIP(s models.SIPSchedule) (models.SIPSchedule, error) {
	if s.Status.Terminal() {
		return s, errs.ErrSIPTerminal
	}
	if s.Status != models.SIPActive {
		return s, errs.ErrSIPNotActive
	}
	s.Status = models.SIPPaused
	return s, nil
}

// ResumeSIP transitions a paused schedule back to active, recomputing
// the next execution date from now rather than the stale paused date.
func ResumeSIP(s models.SIPSchedule, now time.Time) (models.SIPSchedule, error) {
	if s.Status.Terminal() {
		return s, errs.ErrSIPTerminal
	}
	if s.Status != models.SIPPaused {
		return s, errs.ErrSIPNotActive
	}
	s.Status = models.SIPActive
	s.NextExecutionDate = NextExecutionDate(s, DateOnly(now))
	return s, nil
}

// CancelSIP transitions a schedule to the terminal cancelled state.
func CancelSIP(s models.SIPSchedule) (models.SIPSchedule, error) {
	if s.Status.Terminal() {
		return s, errs.ErrSIPTerminal
	}
	s.Status = models.SIPCancelled
	return s, nil
}

func lastDayOfMonth(year int, month time.Month, loc *time.Location) int {
	// Day zero of the following month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
