package model

import "time"

// JobStatus is the lifecycle state of a classification job.
type JobStatus string

// Job status constants.
const (
	JobQueued  JobStatus = "QUEUED"
	JobRunning JobStatus = "RUNNING"
	JobDone    JobStatus = "DONE"
	JobFailed  JobStatus = "FAILED"
)

// IsTerminal reports whether the job will not change state again.
func (s JobStatus) IsTerminal() bool {
	return s == JobDone || s == JobFailed
}

// ClassificationJob is a queryable record of one batch classification run.
type ClassificationJob struct {
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Status     JobStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	FileID     int64      `json:"file_id"`
	Processed  int        `json:"processed"`
	Classified int        `json:"classified"`
	Failed     int        `json:"failed"`
}
