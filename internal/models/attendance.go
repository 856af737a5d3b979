package models

import "time"

// AttendanceStatus represents the outcome recorded for a student on a day.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate:
		return true
	default:
		return false
	}
}

// AttendanceRecord is one ledger row. batch_id, student_name and date form the
// record identity and never change after insert; only status may be revised.
// student_name and batch_name are copied at write time so records survive
// renames and deletions in the surrounding system.
type AttendanceRecord struct {
	ID          string           `db:"id" json:"id"`
	BatchID     string           `db:"batch_id" json:"batch_id"`
	Date        time.Time        `db:"date" json:"date"`
	StudentName string           `db:"student_name" json:"student_name"`
	Status      AttendanceStatus `db:"status" json:"status"`
	MarkedBy    *string          `db:"marked_by" json:"marked_by,omitempty"`
	BatchName   *string          `db:"batch_name" json:"batch_name,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceFilter scopes ledger listing queries.
type AttendanceFilter struct {
	BatchID  string
	Date     *time.Time
	Status   *AttendanceStatus
	Page     int
	PageSize int
}

// AttendanceConflict describes a row rejected because a record with the same
// identity already exists.
type AttendanceConflict struct {
	BatchID     string    `json:"batch_id"`
	StudentName string    `json:"student_name"`
	Date        time.Time `json:"date"`
	Reason      string    `json:"reason"`
}

// DashboardStats is the aggregation payload. Present, absent and late are
// disjoint buckets; TodayAttendance is their sum.
type DashboardStats struct {
	TotalStudents    int `json:"total_students"`
	TotalBatches     int `json:"total_batches"`
	TotalBatchOwners int `json:"total_batch_owners"`
	TodayAttendance  int `json:"today_attendance"`
	TodayPresent     int `json:"today_present"`
	TodayAbsent      int `json:"today_absent"`
	TodayLate        int `json:"today_late"`
}
