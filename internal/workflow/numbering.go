package workflow

import (
	"fmt"
	"time"
)

// TicketNumber derives the human-readable ticket number from the creation
// instant: two-digit year, month, day, hour, minute, second, zero padded.
func TicketNumber(createdAt time.Time) string {
	return createdAt.Format("060102150405")
}

// TicketNumberWithSuffix appends a two-digit disambiguation suffix, used when
// the store rejects the base number as a duplicate (two tickets created
// within the same second).
func TicketNumberWithSuffix(createdAt time.Time, suffix int) string {
	return fmt.Sprintf("%s-%02d", TicketNumber(createdAt), suffix%100)
}
