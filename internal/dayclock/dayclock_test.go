package dayclock

import (
	"testing"
	"time"
)

func TestDayOf(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want uint64
	}{
		{"epoch", time.Unix(0, 0), 0},
		{"last second of day 0", time.Unix(86399, 0), 0},
		{"first second of day 1", time.Unix(86400, 0), 1},
		{"day 100 midday", time.Unix(100*86400+43200, 0), 100},
		{"before epoch", time.Unix(-5, 0), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DayOf(tt.t); got != tt.want {
				t.Errorf("DayOf() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPartitioner_SameDayIsStable(t *testing.T) {
	clock := NewManualClock(time.Unix(100*86400+10, 0))
	p := New(clock)

	first := p.CurrentDay()
	clock.Advance(23 * time.Hour)
	second := p.CurrentDay()

	if first != second {
		t.Errorf("CurrentDay changed within a day: %d then %d", first, second)
	}
	if first != 100 {
		t.Errorf("CurrentDay = %d, want 100", first)
	}
}

func TestPartitioner_RolloverIncrementsByOne(t *testing.T) {
	clock := NewManualClock(DayStart(100).Add(-time.Second))
	p := New(clock)

	before := p.CurrentDay()
	clock.Advance(time.Second)
	after := p.CurrentDay()

	if after != before+1 {
		t.Errorf("rollover: before=%d after=%d, want +1", before, after)
	}
}

func TestDayStart(t *testing.T) {
	start := DayStart(20000)
	if DayOf(start) != 20000 {
		t.Errorf("DayOf(DayStart(20000)) = %d", DayOf(start))
	}
	if DayOf(start.Add(-time.Nanosecond)) != 19999 {
		t.Error("instant before DayStart should belong to previous day")
	}
}

func TestNew_NilClockUsesSystem(t *testing.T) {
	before := DayOf(time.Now())
	got := New(nil).CurrentDay()
	after := DayOf(time.Now())
	if got != before && got != after {
		t.Error("nil clock should fall back to system time")
	}
}
