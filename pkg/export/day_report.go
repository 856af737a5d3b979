package export

import (
	"time"

	"github.com/classroll/classroll-api/internal/models"
)

// DayReport is the printable roster of one batch on one day.
type DayReport struct {
	BatchName string
	Date      time.Time
	Rows      []DayReportRow
}

// DayReportRow is a single roster line.
type DayReportRow struct {
	StudentName string
	Status      string
	MarkedBy    string
}

var dayReportHeaders = []string{"Student", "Status", "Marked By"}

// BuildDayReport converts ledger records into a report. Records are expected
// pre-sorted by student name.
func BuildDayReport(batchName string, date time.Time, records []models.AttendanceRecord) DayReport {
	rows := make([]DayReportRow, len(records))
	for i, rec := range records {
		row := DayReportRow{StudentName: rec.StudentName, Status: string(rec.Status)}
		if rec.MarkedBy != nil {
			row.MarkedBy = *rec.MarkedBy
		}
		rows[i] = row
	}
	return DayReport{BatchName: batchName, Date: date, Rows: rows}
}

func (r DayReport) title() string {
	return r.BatchName + " - " + r.Date.Format("2006-01-02")
}
