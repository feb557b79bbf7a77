package models

import "time"

// JobStatus is the lifecycle state of an ETL job.
// pending -> running -> completed | failed; completed and failed are terminal.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

type JobType string

const (
	JobTypeFullSync      JobType = "full_sync"
	JobTypeIncremental   JobType = "incremental"
	JobTypeScheduledSync JobType = "scheduled_sync"
	JobTypeManualSync    JobType = "manual_sync"
	JobTypeTest          JobType = "test"
)

func (t JobType) Valid() bool {
	switch t {
	case JobTypeFullSync, JobTypeIncremental, JobTypeScheduledSync, JobTypeManualSync, JobTypeTest:
		return true
	}
	return false
}

// FullExtract reports whether the job extracts entire tables; non-full kinds
// sample a bounded number of rows per table instead.
func (t JobType) FullExtract() bool {
	return t != JobTypeIncremental
}

type Job struct {
	ID               string     `json:"id" db:"id"`
	ConnectionID     string     `json:"connection_id" db:"connection_id"`
	Status           JobStatus  `json:"status" db:"status"`
	JobType          JobType    `json:"job_type" db:"job_type"`
	RecordsProcessed int64      `json:"records_processed" db:"records_processed"`
	ErrorMessage     *string    `json:"error_message" db:"error_message"`
	StartedAt        *time.Time `json:"started_at" db:"started_at"`
	CompletedAt      *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}
