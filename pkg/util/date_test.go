package util

import (
	"testing"
	"time"
)

func TestDaysAgoMidnight(t *testing.T) {
	got := DaysAgo(30)
	if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 {
		t.Fatalf("expected midnight, got %v", got)
	}
	if !got.Before(time.Now().UTC()) {
		t.Fatalf("expected past time")
	}
}
