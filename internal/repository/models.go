// Package repository persists detection runs and their leaks.
package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/frontscan/pkg/model"
)

// DetectionRun represents the detection_runs table: one row per completed
// detection session.
type DetectionRun struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RunUUID          string    `gorm:"column:run_uuid;type:varchar(64);uniqueIndex"`
	Framework        string    `gorm:"column:framework;type:varchar(32)"`
	HasLeak          bool      `gorm:"column:has_leak"`
	LeakCount        int       `gorm:"column:leak_count"`
	MemoryGrowth     int64     `gorm:"column:memory_growth"`
	ObjectsScanned   int       `gorm:"column:objects_scanned"`
	DurationMs       int64     `gorm:"column:duration_ms"`
	BaseSnapshotID   string    `gorm:"column:base_snapshot_id;type:varchar(64)"`
	TargetSnapshotID string    `gorm:"column:target_snapshot_id;type:varchar(64)"`
	ReportKey        string    `gorm:"column:report_key;type:varchar(512)"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for DetectionRun.
func (DetectionRun) TableName() string {
	return "detection_runs"
}

// LeakRecord represents the leak_records table: one row per confirmed leak.
type LeakRecord struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RunUUID       string    `gorm:"column:run_uuid;type:varchar(64);index"`
	LeakID        string    `gorm:"column:leak_id;type:varchar(128)"`
	ObjectID      string    `gorm:"column:object_id;type:varchar(128)"`
	Pattern       string    `gorm:"column:pattern;type:varchar(64)"`
	Severity      string    `gorm:"column:severity;type:varchar(16)"`
	Subtype       string    `gorm:"column:subtype;type:varchar(64)"`
	Size          int64     `gorm:"column:size"`
	ComponentName string    `gorm:"column:component_name;type:varchar(256)"`
	Description   string    `gorm:"column:description;type:text"`
	FixSuggestion string    `gorm:"column:fix_suggestion;type:text"`
	Details       JSONField `gorm:"column:details;type:json"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for LeakRecord.
func (LeakRecord) TableName() string {
	return "leak_records"
}

// FromResult maps a detection result to its persistence rows.
func FromResult(runUUID, framework string, result *model.DetectionResult) (*DetectionRun, []*LeakRecord) {
	run := &DetectionRun{
		RunUUID:          runUUID,
		Framework:        framework,
		HasLeak:          result.HasLeak,
		LeakCount:        len(result.Leaks),
		MemoryGrowth:     result.MemoryGrowth,
		ObjectsScanned:   result.ObjectsScanned,
		DurationMs:       result.Duration.Milliseconds(),
		BaseSnapshotID:   result.BaseSnapshotID,
		TargetSnapshotID: result.TargetSnapshotID,
	}

	records := make([]*LeakRecord, 0, len(result.Leaks))
	for _, leak := range result.Leaks {
		rec := &LeakRecord{
			RunUUID:       runUUID,
			LeakID:        leak.ID,
			Pattern:       string(leak.Pattern),
			Severity:      leak.Severity.String(),
			Subtype:       string(leak.Subtype),
			Size:          leak.Size,
			ComponentName: leak.ComponentName,
			Description:   leak.Description,
			FixSuggestion: leak.FixSuggestion,
		}
		if leak.Object != nil {
			rec.ObjectID = leak.Object.ID
		}
		if leak.Details != nil {
			if data, err := json.Marshal(leak.Details); err == nil {
				rec.Details = data
			}
		}
		records = append(records, rec)
	}
	return run, records
}

// JSONField is a custom type for handling JSON columns in GORM.
type JSONField []byte

// Value implements driver.Valuer.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return errors.New("unsupported type for JSONField")
	}
}

// MarshalJSON implements json.Marshaler.
func (j JSONField) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSONField) UnmarshalJSON(data []byte) error {
	if data == nil || string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}
