package domain

import (
	"testing"
	"time"
)

func TestNextOccurrenceSingle(t *testing.T) {
	start := time.Date(2026, time.March, 10, 18, 0, 0, 0, time.UTC)
	e := &Event{Title: "meetup", StartTime: start}

	next, ok, err := e.NextOccurrence(start.Add(-time.Hour))
	if err != nil || !ok {
		t.Fatalf("Expected an occurrence, got ok=%v err=%v", ok, err)
	}
	if !next.Equal(start) {
		t.Errorf("Expected %s, got %s", start, next)
	}

	_, ok, _ = e.NextOccurrence(start.Add(time.Hour))
	if ok {
		t.Error("Past single event should have no next occurrence")
	}
}

func TestNextOccurrenceWeekly(t *testing.T) {
	start := time.Date(2026, time.March, 10, 18, 0, 0, 0, time.UTC)
	e := &Event{Title: "weekly", StartTime: start, Recurrence: "FREQ=WEEKLY;COUNT=3"}

	next, ok, err := e.NextOccurrence(start.Add(24 * time.Hour))
	if err != nil || !ok {
		t.Fatalf("Expected an occurrence, got ok=%v err=%v", ok, err)
	}
	want := start.AddDate(0, 0, 7)
	if !next.Equal(want) {
		t.Errorf("Expected %s, got %s", want, next)
	}

	_, ok, _ = e.NextOccurrence(start.AddDate(0, 0, 15))
	if ok {
		t.Error("Exhausted rule should have no next occurrence")
	}
}

func TestNextOccurrenceInvalidRule(t *testing.T) {
	e := &Event{StartTime: time.Now(), Recurrence: "FREQ=SOMETIMES"}
	if _, _, err := e.NextOccurrence(time.Now()); err == nil {
		t.Error("Expected error for invalid rule")
	}
}
