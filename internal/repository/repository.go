package repository

import "context"

// Repository defines the persistence operations for detection history.
type Repository interface {
	// SaveRun stores a detection run together with its leak records.
	SaveRun(ctx context.Context, run *DetectionRun, leaks []*LeakRecord) error

	// GetRun retrieves a run by its UUID.
	GetRun(ctx context.Context, runUUID string) (*DetectionRun, error)

	// ListRuns retrieves the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]*DetectionRun, error)

	// GetLeaks retrieves the leak records for a run.
	GetLeaks(ctx context.Context, runUUID string) ([]*LeakRecord, error)

	// UpdateReportKey records the storage key of the uploaded report artifact.
	UpdateReportKey(ctx context.Context, runUUID string, key string) error
}
