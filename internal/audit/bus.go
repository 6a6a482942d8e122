// Package audit exposes the append-only contract audit trail and fans audit
// events out to interested consumers over redis.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is the published form of an audit entry. It carries enough for a
// downstream consumer (alerting, archival) to act without a DB lookup.
type Event struct {
	ContractID   uuid.UUID `json:"contract_id"`
	ContractCode string    `json:"contract_code,omitempty"`
	ActorID      uuid.UUID `json:"actor_id"`
	Action       string    `json:"action"`
	RequestID    string    `json:"request_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Bus publishes audit events. Publishing is best-effort for callers: the DB
// row is the durable record, the bus is a signal.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	StartForwarder(ctx context.Context, onEvent func(ev Event)) error
	Close() error
}

type noopBus struct{}

// NewNoopBus returns a bus that drops every event. Used when redis is not
// configured.
func NewNoopBus() Bus { return noopBus{} }

func (noopBus) Publish(context.Context, Event) error                 { return nil }
func (noopBus) StartForwarder(context.Context, func(ev Event)) error { return nil }
func (noopBus) Close() error                                         { return nil }
