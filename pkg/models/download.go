package models

import "time"

// TaskStatus is the lifecycle state of a download task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskFailed:
		return true
	}
	return false
}

// Settled reports whether the backend will not move the task on its own.
func (s TaskStatus) Settled() bool {
	return s == TaskCompleted || s == TaskFailed
}

// CanTransition reports whether a task may move from s to next.
// failed -> pending only happens through an explicit retry.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskPending:
		return next == TaskInProgress
	case TaskInProgress:
		return next == TaskCompleted || next == TaskFailed
	case TaskFailed:
		return next == TaskPending
	}
	return false
}

// DownloadTask is an asynchronous media download job.
type DownloadTask struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	Platform     string     `json:"platform"`
	Filename     string     `json:"filename,omitempty"`
	Status       TaskStatus `json:"status"`
	Progress     int        `json:"progress"`
	DownloadURL  string     `json:"download_url,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	FileSize     int64      `json:"file_size,omitempty"`
	Duration     float64    `json:"duration,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	UserID       string     `json:"-"`
}

type DownloadCreateRequest struct {
	URL string `json:"url" validate:"required,url"`
}

type DownloadRetryRequest struct {
	TaskID string `json:"task_id" validate:"required"`
}

// DownloadCreated is returned by a successful create call.
type DownloadCreated struct {
	TaskID string     `json:"task_id"`
	Status TaskStatus `json:"status"`
}

// DownloadRetried is returned by a successful retry call.
type DownloadRetried struct {
	TaskID  string     `json:"task_id"`
	Status  TaskStatus `json:"status"`
	Message string     `json:"message"`
}
