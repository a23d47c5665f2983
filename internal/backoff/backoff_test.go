package backoff

import (
	"testing"
	"time"
)

func TestExponentialDeterministicSchedule(t *testing.T) {
	s := Exponential{}
	base := time.Second
	max := 30 * time.Second

	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	}
	for attempt, want := range expected {
		got := s.Delay(attempt, base, max, 2.0, 0)
		if got != want {
			t.Errorf("attempt %d: expected %v, got %v", attempt, want, got)
		}
	}
}

func TestExponentialCappedAtMax(t *testing.T) {
	s := Exponential{}
	got := s.Delay(20, time.Second, 10*time.Second, 2.0, 0)
	if got != 10*time.Second {
		t.Errorf("expected cap at 10s, got %v", got)
	}
}

func TestExponentialJitterStaysBounded(t *testing.T) {
	s := Exponential{}
	base := 100 * time.Millisecond
	max := 10 * time.Second

	for i := 0; i < 100; i++ {
		delay := s.Delay(2, base, max, 2.0, 0.5)
		lower := 400 * time.Millisecond
		upper := 600 * time.Millisecond
		if delay < lower || delay > upper {
			t.Errorf("jittered delay %v outside [%v, %v]", delay, lower, upper)
		}
	}
}

func TestExponentialNegativeAttempt(t *testing.T) {
	s := Exponential{}
	if got := s.Delay(-3, time.Second, time.Minute, 2.0, 0); got != time.Second {
		t.Errorf("negative attempt should behave like attempt 0, got %v", got)
	}
}

func TestDecorrelatedFirstAttemptIsBase(t *testing.T) {
	s := Decorrelated{}
	if got := s.Delay(0, time.Second, time.Minute, 2.0, 0); got != time.Second {
		t.Errorf("expected base delay on attempt 0, got %v", got)
	}
}

func TestDecorrelatedWithinBounds(t *testing.T) {
	s := Decorrelated{}
	base := 100 * time.Millisecond
	max := 5 * time.Second

	for attempt := 1; attempt < 8; attempt++ {
		for i := 0; i < 50; i++ {
			delay := s.Delay(attempt, base, max, 2.0, 0)
			if delay < base || delay > max {
				t.Errorf("attempt %d: delay %v outside [%v, %v]", attempt, delay, base, max)
			}
		}
	}
}
