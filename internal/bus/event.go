package bus

import "time"

// Event kinds and namespaces published on the bus.
const (
	// DocPrefix namespaces store change notifications; the remainder of the kind
	// is the document path that changed.
	DocPrefix = "doc."

	UploadPhaseChanged   = "upload.phase_changed"
	UploadRetryScheduled = "upload.retry_scheduled"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// DocKind returns the event kind for a change to the document at path.
func DocKind(path string) string {
	return DocPrefix + path
}
