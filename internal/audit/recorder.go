package audit

import (
	"context"
	"strconv"

	"github.com/nerrad567/hydroponics-core/internal/hydro"
)

// Sources recorded on each entry.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

// DefaultQueueSize is the Recorder buffer used when none is given.
const DefaultQueueSize = 256

// Logger is the logging interface used by Recorder.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type sourceKey struct{}

// ContextWithSource tags ctx with the channel a mutation arrived on.
func ContextWithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFromContext returns the tagged source, defaulting to SourceAPI.
func SourceFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return SourceAPI
}

// Recorder queues audit entries and writes them serially.
// It implements hydro.AuditRecorder.
type Recorder struct {
	repo   Repository
	queue  chan *AuditLog
	logger Logger
}

// NewRecorder creates a recorder with room for size pending entries.
func NewRecorder(repo Repository, size int) *Recorder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Recorder{
		repo:   repo,
		queue:  make(chan *AuditLog, size),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// RecordMutation queues an entry for a committed system or measurement change.
func (r *Recorder) RecordMutation(ctx context.Context, p hydro.Principal, action, entityType string, entityID int64) {
	r.Record(&AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   strconv.FormatInt(entityID, 10),
		UserID:     p.UserID,
		Source:     SourceFromContext(ctx),
	})
}

// Record queues an arbitrary entry. It never blocks; a full queue drops
// the entry.
func (r *Recorder) Record(entry *AuditLog) {
	select {
	case r.queue <- entry:
	default:
		r.logger.Warn("audit queue full, dropping entry",
			"action", entry.Action,
			"entity_type", entry.EntityType,
		)
	}
}

// Run writes queued entries until ctx is cancelled, then flushes whatever
// is still queued before returning.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case entry := <-r.queue:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.queue:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *AuditLog) {
	// The request that produced the entry may be gone; the write must not
	// inherit its cancellation.
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}
}
