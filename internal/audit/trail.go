package audit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/rentline-backend/internal/data/repos"
	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
)

// Entry is the read model for one trail row, with details decoded for the API.
type Entry struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actor_id,omitempty"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// Trail reads the append-only audit trail and announces new entries on the
// bus. Writes happen at the aggregate and store layers, inside the same
// transactions as the state they describe; this service never appends.
type Trail struct {
	log       *logger.Logger
	contracts repos.ContractRepo
	entries   repos.AuditEntryRepo
	bus       Bus
}

func NewTrail(log *logger.Logger, contracts repos.ContractRepo, entries repos.AuditEntryRepo, bus Bus) *Trail {
	if bus == nil {
		bus = NewNoopBus()
	}
	return &Trail{
		log:       log.With("service", "AuditTrail"),
		contracts: contracts,
		entries:   entries,
		bus:       bus,
	}
}

// ListByContractCode returns the full trail for a contract, oldest first.
func (t *Trail) ListByContractCode(ctx context.Context, code string) ([]Entry, error) {
	c, err := t.contracts.GetByCode(ctx, nil, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrContractNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := t.entries.ListByContract(ctx, nil, c.ID)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		e := Entry{
			ID:        row.ID.String(),
			Action:    row.Action,
			RequestID: row.RequestID,
			IP:        row.IP,
			UserAgent: row.UserAgent,
			CreatedAt: row.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		}
		if row.ActorID != uuid.Nil {
			e.ActorID = row.ActorID.String()
		}
		if len(row.Details) > 0 {
			details := map[string]any{}
			if err := json.Unmarshal(row.Details, &details); err != nil {
				t.log.Warn("undecodable audit details", "entry_id", row.ID, "error", err)
			} else {
				e.Details = details
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Announce publishes a just-committed entry on the bus. Failures are logged
// and swallowed: the DB row is the durable record.
func (t *Trail) Announce(ctx context.Context, c *types.Contract, row *types.AuditEntry) {
	ev := Event{
		ContractID: row.ContractID,
		ActorID:    row.ActorID,
		Action:     row.Action,
		RequestID:  row.RequestID,
		OccurredAt: row.CreatedAt.UTC(),
	}
	if c != nil {
		ev.ContractCode = c.Code
	}
	if err := t.bus.Publish(ctx, ev); err != nil {
		t.log.Warn("audit publish failed", "action", row.Action, "error", err)
	}
}
