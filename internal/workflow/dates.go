package workflow

import (
	"time"

	"github.com/cityworks/addressing-service/internal/domain"
)

// AddBusinessDays returns date advanced by n business days, skipping
// Saturdays and Sundays. No holiday calendar is applied.
func AddBusinessDays(date time.Time, n int) time.Time {
	result := date
	for added := 0; added < n; {
		result = result.AddDate(0, 0, 1)
		if isWeekday(result) {
			added++
		}
	}
	return result
}

// BusinessDaysBetween counts business days in the inclusive range from start
// to end, both normalized to midnight. The result is signed: when end is
// before start it returns the negated reverse count, expressing overdue days.
func BusinessDaysBetween(start, end time.Time) int {
	s := atMidnight(start)
	e := atMidnight(end)
	if e.Before(s) {
		return -BusinessDaysBetween(e, s)
	}
	count := 0
	for cur := s; !cur.After(e); cur = cur.AddDate(0, 0, 1) {
		if isWeekday(cur) {
			count++
		}
	}
	return count
}

// PriorityFromDueDate maps remaining business days until dueDate to a
// priority tier. The thresholds are fixed, not per-ticket configuration.
func PriorityFromDueDate(dueDate, now time.Time) domain.TicketPriority {
	remaining := BusinessDaysBetween(now, dueDate)
	switch {
	case remaining <= 0:
		return domain.TicketPriorityCritical
	case remaining == 1:
		return domain.TicketPriorityHigh
	case remaining <= 3:
		return domain.TicketPriorityMedium
	default:
		return domain.TicketPriorityLow
	}
}

func isWeekday(t time.Time) bool {
	day := t.Weekday()
	return day != time.Saturday && day != time.Sunday
}

func atMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
