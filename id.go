package agentrt

import (
	"time"

	"github.com/google/uuid"
)

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562).
// Used for todo IDs, background-task IDs, and interrupt IDs.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NowUnix returns the current time as Unix seconds.
func NowUnix() int64 {
	return time.Now().Unix()
}

// NowISO returns the current time formatted as RFC3339 (ISO-8601), the
// timestamp format the data model (§3) uses for created_at/modified_at.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
