package service

import (
	"context"

	"github.com/classroll/classroll-api/internal/models"
)

// StatusUpdater is the ledger operation an edit buffer saves through.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, recordID, status string) (*models.AttendanceRecord, error)
}

// EditBuffer is a working copy of one day's statuses keyed by record id.
// Saving submits only the entries that differ from the seeded baseline, one
// update per changed record, then rebases the baseline to the saved state.
// Resetting restores the working copy without any store interaction.
type EditBuffer struct {
	baseline map[string]models.AttendanceStatus
	working  map[string]models.AttendanceStatus
}

// NewEditBuffer seeds a buffer from persisted records.
func NewEditBuffer(records []models.AttendanceRecord) *EditBuffer {
	baseline := make(map[string]models.AttendanceStatus, len(records))
	working := make(map[string]models.AttendanceStatus, len(records))
	for _, rec := range records {
		baseline[rec.ID] = rec.Status
		working[rec.ID] = rec.Status
	}
	return &EditBuffer{baseline: baseline, working: working}
}

// Set stages a status for a seeded record. Unknown record ids are ignored so
// the buffer can never introduce rows the day does not have.
func (b *EditBuffer) Set(recordID string, status models.AttendanceStatus) {
	if _, ok := b.baseline[recordID]; !ok {
		return
	}
	if !status.Valid() {
		return
	}
	b.working[recordID] = status
}

// Get returns the staged status for a record.
func (b *EditBuffer) Get(recordID string) (models.AttendanceStatus, bool) {
	status, ok := b.working[recordID]
	return status, ok
}

// Len returns the number of seeded records.
func (b *EditBuffer) Len() int {
	return len(b.baseline)
}

// HasChanges reports whether any entry differs from the baseline.
func (b *EditBuffer) HasChanges() bool {
	for id, status := range b.working {
		if b.baseline[id] != status {
			return true
		}
	}
	return false
}

// Changes returns the staged entries that differ from the baseline.
func (b *EditBuffer) Changes() map[string]models.AttendanceStatus {
	changes := make(map[string]models.AttendanceStatus)
	for id, status := range b.working {
		if b.baseline[id] != status {
			changes[id] = status
		}
	}
	return changes
}

// Save submits exactly one update per changed record and rebases the baseline
// to the saved state. Entries saved before a failure stay rebased; the rest
// keep their staged value so a retry resubmits only what is still pending.
func (b *EditBuffer) Save(ctx context.Context, updater StatusUpdater) (int, error) {
	saved := 0
	for id, status := range b.Changes() {
		if _, err := updater.UpdateStatus(ctx, id, string(status)); err != nil {
			return saved, err
		}
		b.baseline[id] = status
		saved++
	}
	return saved, nil
}

// Reset restores the working copy to the baseline.
func (b *EditBuffer) Reset() {
	for id, status := range b.baseline {
		b.working[id] = status
	}
}
