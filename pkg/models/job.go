package models

import (
	"encoding/json"
	"strings"
)

// JobStatus is the lifecycle state of an analysis job.
// Transitions only move forward: pending -> processing -> completed | failed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ParseJobStatus normalizes a server status value. The server reports
// "queued" and "running" for the two non-terminal states; anything unknown
// but non-empty is treated as work in progress.
func ParseJobStatus(s string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pending", "queued":
		return JobStatusPending
	case "processing", "running":
		return JobStatusProcessing
	case "completed", "complete", "succeeded", "done":
		return JobStatusCompleted
	case "failed", "error":
		return JobStatusFailed
	default:
		return JobStatusProcessing
	}
}

// Terminal reports whether no further transitions can occur.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Rank orders statuses along the lifecycle. Both terminal states share a rank.
func (s JobStatus) Rank() int {
	switch s {
	case JobStatusPending:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	default:
		return -1
	}
}

// AnalysisJob is a server-tracked unit of asynchronous analysis work.
// JobID is always assigned by the server. Result holds the exact bytes the
// server returned for the job and is only meaningful once Status is terminal.
type AnalysisJob struct {
	JobID  string          `json:"job_id"`
	Status JobStatus       `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
}
