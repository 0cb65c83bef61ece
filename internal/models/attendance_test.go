package models

import (
	"testing"
	"time"
)

func TestAttendanceStatusAt(t *testing.T) {
	day := func(hour, minute int) time.Time {
		return time.Date(2025, 6, 2, hour, minute, 0, 0, time.UTC)
	}

	tests := []struct {
		name string
		at   time.Time
		want AttendanceStatus
	}{
		{"well before cutoff", day(8, 30), StatusPresent},
		{"exactly at cutoff", day(9, 15), StatusPresent},
		{"one minute past", day(9, 16), StatusLate},
		{"afternoon", day(14, 0), StatusLate},
		{"midnight", day(0, 0), StatusPresent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AttendanceStatusAt(tt.at, 9, 15); got != tt.want {
				t.Errorf("AttendanceStatusAt(%v) = %s, want %s", tt.at, got, tt.want)
			}
		})
	}
}
