package clocktest

import (
	"testing"
	"time"
)

func TestFakeClock_Advance(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)
	if !c.Now().Equal(start) {
		t.Fatalf("Now=%s, want %s", c.Now(), start)
	}
	c.Advance(25 * time.Hour)
	if want := start.Add(25 * time.Hour); !c.Now().Equal(want) {
		t.Fatalf("Now=%s, want %s", c.Now(), want)
	}
}
