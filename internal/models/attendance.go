package models

import (
	"time"

	"github.com/google/uuid"
)

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "Present"
	StatusLate    AttendanceStatus = "Late"
)

type AttendanceRecord struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	EmployeeID uuid.UUID        `json:"employee_id" db:"employee_id"`
	Date       time.Time        `json:"date" db:"date"`
	Status     AttendanceStatus `json:"status" db:"status"`
	MarkedAt   time.Time        `json:"marked_at" db:"marked_at"`
}

// AttendanceStatusAt classifies a mark time against the workday late cutoff.
func AttendanceStatusAt(t time.Time, cutoffHour, cutoffMinute int) AttendanceStatus {
	cutoff := time.Date(t.Year(), t.Month(), t.Day(), cutoffHour, cutoffMinute, 0, 0, t.Location())
	if t.After(cutoff) {
		return StatusLate
	}
	return StatusPresent
}
