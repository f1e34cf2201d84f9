package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
)

type Event struct {
	Id          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Location    string     `json:"location,omitempty"`
	URL         string     `json:"url,omitempty"`
	Recurrence  string     `json:"recurrence,omitempty"` // RRULE body, e.g. FREQ=WEEKLY;COUNT=4
	Organizer   string     `json:"organizer,omitempty"`
}

func (e *Event) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tTitle: %s \n\tStart: %s)", e.Id, e.Title, e.StartTime)
}

// NextOccurrence returns the first start at or after t. Non-recurring
// events only have their own start. ok is false when nothing is left.
func (e *Event) NextOccurrence(t time.Time) (next time.Time, ok bool, err error) {
	if e.Recurrence == "" {
		if e.StartTime.Before(t) {
			return time.Time{}, false, nil
		}
		return e.StartTime, true, nil
	}

	opt, err := rrule.StrToROption(e.Recurrence)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid recurrence %q: %w", e.Recurrence, err)
	}
	opt.Dtstart = e.StartTime
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid recurrence %q: %w", e.Recurrence, err)
	}

	next = rule.After(t, true)
	if next.IsZero() {
		return time.Time{}, false, nil
	}
	return next, true, nil
}
