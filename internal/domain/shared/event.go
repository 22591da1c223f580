package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents an event that occurred in the domain
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	ContractID() uint64
}

// BaseDomainEvent provides common fields for all domain events.
// Contract ids are the registry's monotonically increasing sequence numbers,
// so events carry a uint64 aggregate reference rather than a uuid.
type BaseDomainEvent struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	ContractIDVal uint64    `json:"contract_id"`
}

// EventID returns the unique event identifier
func (e *BaseDomainEvent) EventID() uuid.UUID {
	return e.ID
}

// EventType returns the type of the event
func (e *BaseDomainEvent) EventType() string {
	return e.Type
}

// OccurredAt returns when the event occurred
func (e *BaseDomainEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// ContractID returns the id of the contract that produced this event.
// Events not tied to a contract (e.g. pool maintenance) carry zero.
func (e *BaseDomainEvent) ContractID() uint64 {
	return e.ContractIDVal
}

// NewBaseDomainEvent creates a new base domain event
func NewBaseDomainEvent(eventType string, contractID uint64) BaseDomainEvent {
	return BaseDomainEvent{
		ID:            uuid.New(),
		Type:          eventType,
		Timestamp:     time.Now(),
		ContractIDVal: contractID,
	}
}
