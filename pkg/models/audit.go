package models

import "time"

// AuditEntry records a single mutating request on the backend.
type AuditEntry struct {
	ID             int64
	RequestID      string
	Timestamp      time.Time
	UserID         string
	Operation      string
	Path           string
	ResponseCode   int
	ResponseTimeMs int64
	ClientIP       string
}
