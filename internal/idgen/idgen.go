// Package idgen mints the identifiers the monitor hands out itself. Store
// rows get their ids from SQLite; these cover everything outside the store.
package idgen

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// RequestID returns a UUIDv7 for correlating an HTTP request across logs and
// traces. It falls back to a random UUIDv4 if v7 generation fails.
func RequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ObserverID returns a ULID naming one live-stream registration. ULIDs sort
// by registration time, which keeps diagnostics and drop logs in order.
func ObserverID() string {
	return ulid.Make().String()
}
