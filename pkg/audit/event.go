// Package audit records every successful mutation of the control plane.
// Events are published to a Sink that fans them out asynchronously to an
// ordered list of listeners (console, in-memory ring, database, Kafka,
// Redis). A slow or failing listener never blocks the publisher or the
// other listeners.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/michelin/ns4kafka-go/pkg/resource"
)

// Event is an immutable audit record.
type Event struct {
	ID        string               `json:"id"`
	User      string               `json:"user"`
	IsAdmin   bool                 `json:"admin"`
	Timestamp time.Time            `json:"date"`
	Kind      resource.Kind        `json:"kind"`
	Metadata  resource.Metadata    `json:"metadata"`
	Operation resource.ApplyStatus `json:"operation"`
	Before    resource.Spec        `json:"before"`
	After     resource.Spec        `json:"after"`
}

// NewEvent builds an event for a mutation of r. before and after are nil
// when the resource did not exist before or no longer exists after.
func NewEvent(user string, isAdmin bool, op resource.ApplyStatus, r *resource.Resource, before, after resource.Spec) Event {
	return Event{
		ID:        uuid.NewString(),
		User:      user,
		IsAdmin:   isAdmin,
		Timestamp: time.Now().UTC(),
		Kind:      r.Kind,
		Metadata:  r.Metadata,
		Operation: op,
		Before:    before,
		After:     after,
	}
}
