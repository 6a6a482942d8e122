package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/rentline-backend/internal/data/repos"
	"github.com/yungbote/rentline-backend/internal/data/repos/testutil"
	types "github.com/yungbote/rentline-backend/internal/domain/contract"
)

type captureBus struct {
	events []Event
}

func (b *captureBus) Publish(_ context.Context, ev Event) error {
	b.events = append(b.events, ev)
	return nil
}
func (b *captureBus) StartForwarder(context.Context, func(ev Event)) error { return nil }
func (b *captureBus) Close() error                                         { return nil }

func seedContract(t *testing.T, contracts repos.ContractRepo) *types.Contract {
	t.Helper()
	c := &types.Contract{
		Code:        "HD-" + uuid.NewString()[:8],
		Title:       "Hop dong thue can ho",
		Status:      types.StatusDraft,
		LandlordID:  uuid.New(),
		TenantID:    uuid.New(),
		PropertyRef: "listing-7",
		StartDate:   time.Now().UTC(),
		EndDate:     time.Now().UTC().AddDate(1, 0, 0),
	}
	created, err := contracts.Create(context.Background(), nil, []*types.Contract{c})
	if err != nil {
		t.Fatalf("seed contract: %v", err)
	}
	return created[0]
}

func TestListByContractCodeDecodesDetails(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	contracts := repos.NewContractRepo(db, log)
	entries := repos.NewAuditEntryRepo(db, log)
	trail := NewTrail(log, contracts, entries, nil)

	c := seedContract(t, contracts)
	actor := uuid.New()
	for _, action := range []string{types.AuditSessionCreated, types.AuditSessionConsumed} {
		_, err := entries.Append(context.Background(), nil, &types.AuditEntry{
			ContractID: c.ID,
			ActorID:    actor,
			Action:     action,
			Details:    datatypes.JSON([]byte(`{"role":"tenant"}`)),
			RequestID:  "req-1",
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := trail.ListByContractCode(context.Background(), c.Code)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	if got[0].Action != types.AuditSessionCreated {
		t.Fatalf("order: first action = %s", got[0].Action)
	}
	if got[0].Details["role"] != "tenant" {
		t.Fatalf("details = %v", got[0].Details)
	}
	if got[0].ActorID != actor.String() {
		t.Fatalf("actor = %s", got[0].ActorID)
	}
}

func TestListByContractCodeUnknownContract(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	trail := NewTrail(log, repos.NewContractRepo(db, log), repos.NewAuditEntryRepo(db, log), nil)

	_, err := trail.ListByContractCode(context.Background(), "HD-NOPE")
	if !errors.Is(err, types.ErrContractNotFound) {
		t.Fatalf("err = %v, want contract not found", err)
	}
}

func TestAnnouncePublishesEvent(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	contracts := repos.NewContractRepo(db, log)
	bus := &captureBus{}
	trail := NewTrail(log, contracts, repos.NewAuditEntryRepo(db, log), bus)

	c := seedContract(t, contracts)
	trail.Announce(context.Background(), c, &types.AuditEntry{
		ContractID: c.ID,
		Action:     types.AuditContractTransition,
		CreatedAt:  time.Now(),
	})

	if len(bus.events) != 1 {
		t.Fatalf("events = %d, want 1", len(bus.events))
	}
	if bus.events[0].ContractCode != c.Code || bus.events[0].Action != types.AuditContractTransition {
		t.Fatalf("event = %+v", bus.events[0])
	}
}
