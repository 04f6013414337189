package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cityworks/addressing-service/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddBusinessDays(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		n     int
		want  time.Time
	}{
		{"monday plus five lands next monday", date(2024, time.January, 15), 5, date(2024, time.January, 22)},
		{"wednesday plus five skips weekend", date(2024, time.January, 17), 5, date(2024, time.January, 24)},
		{"friday plus one lands monday", date(2024, time.January, 19), 1, date(2024, time.January, 22)},
		{"saturday start walks to weekdays", date(2024, time.January, 20), 1, date(2024, time.January, 22)},
		{"sunday start walks to weekdays", date(2024, time.January, 21), 2, date(2024, time.January, 23)},
		{"zero days is identity", date(2024, time.January, 17), 0, date(2024, time.January, 17)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddBusinessDays(tt.start, tt.n))
		})
	}
}

func TestAddBusinessDaysRoundTrip(t *testing.T) {
	// For a weekday start, the inclusive count over (start, start+n business
	// days) is n+1: both endpoints are weekdays and land in the range.
	starts := []time.Time{
		date(2024, time.January, 15), // Monday
		date(2024, time.January, 17), // Wednesday
		date(2024, time.January, 19), // Friday
	}
	for _, start := range starts {
		for n := 1; n <= 10; n++ {
			end := AddBusinessDays(start, n)
			assert.Equal(t, n+1, BusinessDaysBetween(start, end),
				"start=%s n=%d", start.Format("2006-01-02"), n)
		}
	}
}

func TestBusinessDaysBetween(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{"same weekday counts itself", date(2024, time.January, 17), date(2024, time.January, 17), 1},
		{"same saturday counts nothing", date(2024, time.January, 20), date(2024, time.January, 20), 0},
		{"monday to friday", date(2024, time.January, 15), date(2024, time.January, 19), 5},
		{"full week spans weekend", date(2024, time.January, 15), date(2024, time.January, 22), 6},
		{"weekend only range", date(2024, time.January, 20), date(2024, time.January, 21), 0},
		{"reversed range is negated", date(2024, time.January, 19), date(2024, time.January, 15), -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BusinessDaysBetween(tt.start, tt.end))
		})
	}
}

func TestBusinessDaysBetweenNormalizesTime(t *testing.T) {
	// Intraday times never change the count.
	morning := time.Date(2024, time.January, 15, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2024, time.January, 19, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, 5, BusinessDaysBetween(morning, evening))
}

func TestPriorityFromDueDate(t *testing.T) {
	now := date(2024, time.January, 15) // Monday

	tests := []struct {
		name string
		due  time.Time
		want domain.TicketPriority
	}{
		{"overdue is critical", date(2024, time.January, 12), domain.TicketPriorityCritical},
		{"due today counts itself as the last day", now, domain.TicketPriorityHigh},
		{"one business day is high", date(2024, time.January, 16), domain.TicketPriorityHigh},
		{"two business days is medium", date(2024, time.January, 17), domain.TicketPriorityMedium},
		{"three business days is medium", date(2024, time.January, 18), domain.TicketPriorityMedium},
		{"four business days is low", date(2024, time.January, 19), domain.TicketPriorityLow},
		{"next week is low", date(2024, time.January, 26), domain.TicketPriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PriorityFromDueDate(tt.due, now))
		})
	}
}

func TestPriorityFromDueDateOnWeekend(t *testing.T) {
	// A weekend "now" contributes no business days, so a due date on the
	// same weekend drops straight to Critical.
	saturday := date(2024, time.January, 20)
	assert.Equal(t, domain.TicketPriorityCritical, PriorityFromDueDate(saturday, saturday))
}

func TestPriorityMonotonicity(t *testing.T) {
	now := date(2024, time.January, 15)
	urgency := map[domain.TicketPriority]int{
		domain.TicketPriorityCritical: 3,
		domain.TicketPriorityHigh:     2,
		domain.TicketPriorityMedium:   1,
		domain.TicketPriorityLow:      0,
	}

	prev := urgency[PriorityFromDueDate(now.AddDate(0, 0, -10), now)]
	for offset := -9; offset <= 20; offset++ {
		cur := urgency[PriorityFromDueDate(now.AddDate(0, 0, offset), now)]
		assert.LessOrEqual(t, cur, prev, "urgency rose with a later due date at offset %d", offset)
		prev = cur
	}
}
