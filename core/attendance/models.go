package attendance

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-attendance/core"
)

// Status is the observed state of a student on a school day.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

var AllStatuses = []Status{StatusPresent, StatusAbsent, StatusLate, StatusExcused}

func (s Status) IsValid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// Attended reports whether the status counts toward the attendance rate.
func (s Status) Attended() bool {
	return s == StatusPresent || s == StatusLate
}

// Event is the recorded attendance of one student on one date, optionally within a class.
// (TenantID, StudentID, Date, ClassID) identifies it; re-marking overwrites the mutable fields.
type Event struct {
	ID        string      `db:"id" json:"id"`
	TenantID  string      `db:"tenant_id" json:"tenant_id"`
	StudentID string      `db:"student_id" json:"student_id"`
	ClassID   null.String `db:"class_id" json:"class_id"`
	Date      core.Date   `db:"attendance_date" json:"attendance_date"`
	Status    Status      `db:"status" json:"status"`
	TimeIn    null.String `db:"time_in" json:"time_in"`
	TimeOut   null.String `db:"time_out" json:"time_out"`
	Notes     null.String `db:"notes" json:"notes"`
	MarkedBy  null.String `db:"marked_by" json:"marked_by"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`

	// read-only display attributes joined in by the store
	StudentCode string      `db:"student_code" json:"student_code,omitempty"`
	StudentName string      `db:"student_name" json:"student_name,omitempty"`
	ClassName   null.String `db:"class_name" json:"class_name,omitempty"`
	Section     null.String `db:"section" json:"section,omitempty"`
}

// Key returns the identity of the event within its tenant.
func (e Event) Key() Key {
	return Key{StudentID: e.StudentID, Date: e.Date, ClassID: e.ClassID.String}
}

// Key identifies an Event within a tenant. An empty ClassID means the event has no class.
type Key struct {
	StudentID string
	Date      core.Date
	ClassID   string
}

// Amendment keeps the previous values of an event overwritten by a re-mark.
type Amendment struct {
	ID         string      `db:"id" json:"id"`
	EventID    string      `db:"event_id" json:"event_id"`
	TenantID   string      `db:"tenant_id" json:"tenant_id"`
	OldStatus  Status      `db:"old_status" json:"old_status"`
	NewStatus  Status      `db:"new_status" json:"new_status"`
	OldTimeIn  null.String `db:"old_time_in" json:"old_time_in"`
	NewTimeIn  null.String `db:"new_time_in" json:"new_time_in"`
	OldTimeOut null.String `db:"old_time_out" json:"old_time_out"`
	NewTimeOut null.String `db:"new_time_out" json:"new_time_out"`
	OldNotes   null.String `db:"old_notes" json:"old_notes"`
	NewNotes   null.String `db:"new_notes" json:"new_notes"`
	AmendedBy  null.String `db:"amended_by" json:"amended_by"`
	AmendedAt  time.Time   `db:"amended_at" json:"amended_at"`
}

// NewAmendment returns the amendment recording prev being replaced by next,
// or false when none of the mutable values changed.
func NewAmendment(prev, next Event) (Amendment, bool) {
	if prev.Status == next.Status && prev.TimeIn == next.TimeIn && prev.TimeOut == next.TimeOut && prev.Notes == next.Notes {
		return Amendment{}, false
	}
	return Amendment{
		EventID:    prev.ID,
		TenantID:   prev.TenantID,
		OldStatus:  prev.Status,
		NewStatus:  next.Status,
		OldTimeIn:  prev.TimeIn,
		NewTimeIn:  next.TimeIn,
		OldTimeOut: prev.TimeOut,
		NewTimeOut: next.TimeOut,
		OldNotes:   prev.Notes,
		NewNotes:   next.Notes,
		AmendedBy:  next.MarkedBy,
		AmendedAt:  next.UpdatedAt,
	}, true
}

// Student is a roster entry as seen by the enrollment collaborator.
type Student struct {
	ID   string `db:"id" json:"id"`
	Code string `db:"student_code" json:"student_code"`
	Name string `db:"student_name" json:"student_name"`
}

type Class struct {
	ID      string      `db:"id" json:"id"`
	Name    string      `db:"class_name" json:"class_name"`
	Section null.String `db:"section" json:"section"`
}

// MarkInput holds the values of a single mark.
type MarkInput struct {
	StudentID string    `json:"student_id" validate:"required"`
	ClassID   string    `json:"class_id"`
	Date      core.Date `json:"attendance_date" validate:"required"`
	Status    Status    `json:"status" validate:"required,attendancestatus"`
	TimeIn    string    `json:"time_in" validate:"omitempty,clock"`
	TimeOut   string    `json:"time_out" validate:"omitempty,clock"`
	Notes     string    `json:"notes" validate:"max=1000"`
	MarkedBy  string    `json:"-"`
}

// BulkMarkInput marks many students of one class on one date.
// MarkRemainingAs, when set, applies to every active roster student missing from Statuses.
type BulkMarkInput struct {
	ClassID         string            `json:"class_id" validate:"required"`
	Date            core.Date         `json:"attendance_date" validate:"required"`
	Statuses        map[string]Status `json:"statuses"`
	MarkRemainingAs Status            `json:"mark_remaining_as" validate:"omitempty,attendancestatus"`
	MarkedBy        string            `json:"-"`
}

// QueryFilter narrows events down. Zero values are ignored.
type QueryFilter struct {
	TenantID  string
	Date      core.Date
	Range     core.DateRange
	ClassID   string
	StudentID string
	Status    Status
	Search    string // matched against student code and name, case-insensitive
	Ordering  []core.DBOrdering
}

// OrderingFields lists the fields events can be ordered by.
var OrderingFields = []string{"attendance_date", "created_at", "updated_at", "status", "student_name"}

// Stats

// ClassStat summarizes attendance per (class name, section).
type ClassStat struct {
	ClassName string      `json:"class_name"`
	Section   null.String `json:"section"`
	Present   int         `json:"present"`
	Absent    int         `json:"absent"`
	Late      int         `json:"late"`
	Total     int         `json:"total"`
	Rate      int         `json:"rate"`
}

type StudentStat struct {
	StudentID      string `json:"student_id"`
	StudentCode    string `json:"student_code"`
	StudentName    string `json:"student_name"`
	PresentDays    int    `json:"present_days"`
	AbsentDays     int    `json:"absent_days"`
	LateDays       int    `json:"late_days"`
	TotalDays      int    `json:"total_days"`
	AttendanceRate int    `json:"attendance_rate"`
	BelowThreshold bool   `json:"below_threshold"`
}

type DailyStat struct {
	Date    core.Date `json:"date"`
	Present int       `json:"present"`
	Absent  int       `json:"absent"`
	Late    int       `json:"late"`
	Total   int       `json:"total"`
	Rate    int       `json:"rate"`
}

// TodaySummary is the dashboard snapshot of the current day.
// AttendanceRate is computed over recorded events by default; Unmarked exposes
// the roster students with no event today.
type TodaySummary struct {
	Date           core.Date `json:"date"`
	TotalStudents  int       `json:"total_students"`
	PresentToday   int       `json:"present_today"`
	AbsentToday    int       `json:"absent_today"`
	LateToday      int       `json:"late_today"`
	ExcusedToday   int       `json:"excused_today"`
	Unmarked       int       `json:"unmarked"`
	AttendanceRate int       `json:"attendance_rate"`
}
