package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/org/stockdesk/pkg/models"
)

// Writer is the storage the audit Logger appends to.
type Writer interface {
	WriteAuditEntry(ctx context.Context, entry *models.AuditEntry) error
}

// Logger records administrative mutations.
type Logger struct {
	store Writer
}

// NewLogger creates an audit Logger.
func NewLogger(store Writer) *Logger {
	return &Logger{store: store}
}

// LogRequest records a request. Request bodies are never passed here, only
// metadata. A storage failure is logged and does not fail the request.
func (l *Logger) LogRequest(ctx context.Context, entry *models.AuditEntry) {
	entry.Timestamp = time.Now().UTC()
	if err := l.store.WriteAuditEntry(ctx, entry); err != nil {
		log.Warn().Err(err).Str("operation", entry.Operation).Str("path", entry.Path).Msg("audit write failed")
	}
}
