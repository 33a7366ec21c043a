package clock

import (
	"testing"
	"time"
)

func TestManualClock(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m := NewManual(start)
	if !m.Now().Equal(start) {
		t.Fatalf("now=%v want %v", m.Now(), start)
	}
	m.Advance(time.Hour)
	if got := m.Now().Sub(start); got != time.Hour {
		t.Fatalf("advanced %v want 1h", got)
	}
	m.Set(start)
	if !m.Now().Equal(start) {
		t.Fatalf("set failed")
	}
}

func TestOrDefaultsToRealClock(t *testing.T) {
	if _, ok := Or(nil).(RealClock); !ok {
		t.Fatalf("Or(nil) should be RealClock")
	}
	m := NewManual(time.Time{})
	if Or(m) != Clock(m) {
		t.Fatalf("Or should keep the given clock")
	}
}
