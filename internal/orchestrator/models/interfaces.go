package models

// EventAuditor records orchestration-level events.
// Implementations must never fail the caller.
type EventAuditor interface {
	LogEvent(correlationID, callerID, event string, details map[string]any, outcome Outcome)
}

// IDGenerator mints correlation ids.
type IDGenerator interface {
	NewID() string
}
