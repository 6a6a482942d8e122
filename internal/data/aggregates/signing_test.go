package aggregates

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/rentline-backend/internal/data/repos"
	"github.com/yungbote/rentline-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/rentline-backend/internal/domain/aggregates"
	types "github.com/yungbote/rentline-backend/internal/domain/contract"
)

type signingFixture struct {
	db         *gorm.DB
	agg        domainagg.SigningAggregate
	contracts  repos.ContractRepo
	sessions   repos.SigningSessionRepo
	signatures repos.SignatureRecordRepo
	audit      repos.AuditEntryRepo
}

func newSigningFixture(t *testing.T) *signingFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	f := &signingFixture{
		db:         db,
		contracts:  repos.NewContractRepo(db, log),
		sessions:   repos.NewSigningSessionRepo(db, log),
		signatures: repos.NewSignatureRecordRepo(db, log),
		audit:      repos.NewAuditEntryRepo(db, log),
	}
	f.agg = NewSigningAggregate(SigningAggregateDeps{
		Base:       BaseDeps{DB: db, Log: log},
		Contracts:  f.contracts,
		Sessions:   f.sessions,
		Signatures: f.signatures,
		Audit:      f.audit,
	})
	return f
}

func (f *signingFixture) seedContract(t *testing.T, status types.Status) *types.Contract {
	t.Helper()
	c := &types.Contract{
		Code:        fmt.Sprintf("HD-%s", uuid.NewString()[:8]),
		Title:       "Hop dong thue nha",
		Status:      status,
		LandlordID:  uuid.New(),
		TenantID:    uuid.New(),
		PropertyRef: "listing-42",
		StartDate:   time.Now().UTC(),
		EndDate:     time.Now().UTC().AddDate(1, 0, 0),
	}
	created, err := f.contracts.Create(context.Background(), nil, []*types.Contract{c})
	if err != nil {
		t.Fatalf("seed contract: %v", err)
	}
	return created[0]
}

func (f *signingFixture) openSession(t *testing.T, c *types.Contract, signerID uuid.UUID, role types.Role) domainagg.OpenSessionResult {
	t.Helper()
	res, err := f.agg.OpenSession(context.Background(), domainagg.OpenSessionInput{
		ContractID:    c.ID,
		SignerID:      signerID,
		Role:          role,
		Channel:       types.ChannelSMS,
		ChannelTarget: "+84912345678",
		CodeHash:      "$2a$10$abcdefghijklmnopqrstuv",
		ExpiresAt:     time.Now().UTC().Add(types.SessionTTL),
		Actor:         domainagg.ActorMeta{ActorID: signerID},
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return res
}

func completeInput(c *types.Contract, sessionID, signerID uuid.UUID, role types.Role) domainagg.CompleteSigningInput {
	return domainagg.CompleteSigningInput{
		SessionID:   sessionID,
		ContractID:  c.ID,
		SignerID:    signerID,
		Role:        role,
		ImageKey:    "signatures/" + uuid.NewString() + ".png",
		ImageHash:   "1d5c2f295e30362af54b7f27bc2a7b2b2f43e4a3f61d2c9f9a7f1e2d3c4b5a69",
		ContentHash: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		Evidence:    []byte(`{"risk_score":0}`),
		SignedAt:    time.Now().UTC(),
		Actor:       domainagg.ActorMeta{ActorID: signerID},
	}
}

func TestOpenSessionMovesDraftToPendingSignature(t *testing.T) {
	f := newSigningFixture(t)
	c := f.seedContract(t, types.StatusDraft)

	res := f.openSession(t, c, c.TenantID, types.RoleTenant)
	if res.ContractStatus != types.StatusPendingSignature {
		t.Fatalf("contract status = %q, want pending_signature", res.ContractStatus)
	}

	got, err := f.contracts.GetByID(context.Background(), nil, c.ID)
	if err != nil {
		t.Fatalf("reload contract: %v", err)
	}
	if got.Status != types.StatusPendingSignature {
		t.Fatalf("persisted status = %q, want pending_signature", got.Status)
	}

	session, err := f.sessions.GetByID(context.Background(), nil, res.SessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.State != types.SessionPending {
		t.Fatalf("session state = %q, want pending", session.State)
	}

	entries, err := f.audit.ListByContract(context.Background(), nil, c.ID)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	actions := map[string]bool{}
	for _, e := range entries {
		actions[e.Action] = true
	}
	if !actions[types.AuditSessionCreated] || !actions[types.AuditContractTransition] {
		t.Fatalf("audit actions = %v, want session_created and status_transition", actions)
	}
}

func TestOpenSessionSupersedesPreviousCode(t *testing.T) {
	f := newSigningFixture(t)
	c := f.seedContract(t, types.StatusDraft)

	first := f.openSession(t, c, c.TenantID, types.RoleTenant)
	second := f.openSession(t, c, c.TenantID, types.RoleTenant)

	if second.Superseded != 1 {
		t.Fatalf("superseded = %d, want 1", second.Superseded)
	}

	old, err := f.sessions.GetByID(context.Background(), nil, first.SessionID)
	if err != nil {
		t.Fatalf("load first session: %v", err)
	}
	if old.State != types.SessionSuperseded {
		t.Fatalf("first session state = %q, want superseded", old.State)
	}
}

func TestOpenSessionRejectsUnsignableContract(t *testing.T) {
	f := newSigningFixture(t)
	c := f.seedContract(t, types.StatusActive)

	_, err := f.agg.OpenSession(context.Background(), domainagg.OpenSessionInput{
		ContractID:    c.ID,
		SignerID:      c.TenantID,
		Role:          types.RoleTenant,
		Channel:       types.ChannelSMS,
		ChannelTarget: "+84912345678",
		CodeHash:      "$2a$10$abcdefghijklmnopqrstuv",
		ExpiresAt:     time.Now().UTC().Add(types.SessionTTL),
	})
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("err = %v, want invariant_violation", err)
	}
}

func TestCompleteSigningAdvancesThroughBothSlots(t *testing.T) {
	f := newSigningFixture(t)
	c := f.seedContract(t, types.StatusDraft)

	tenant := f.openSession(t, c, c.TenantID, types.RoleTenant)
	res, err := f.agg.CompleteSigning(context.Background(), completeInput(c, tenant.SessionID, c.TenantID, types.RoleTenant))
	if err != nil {
		t.Fatalf("first signature: %v", err)
	}
	if res.ContractStatus != types.StatusPartiallySigned || res.FullySigned {
		t.Fatalf("after first signature: status=%q fully=%v", res.ContractStatus, res.FullySigned)
	}

	landlord := f.openSession(t, c, c.LandlordID, types.RoleLandlord)
	res, err = f.agg.CompleteSigning(context.Background(), completeInput(c, landlord.SessionID, c.LandlordID, types.RoleLandlord))
	if err != nil {
		t.Fatalf("second signature: %v", err)
	}
	if res.ContractStatus != types.StatusActive || !res.FullySigned {
		t.Fatalf("after second signature: status=%q fully=%v", res.ContractStatus, res.FullySigned)
	}

	got, err := f.contracts.GetByID(context.Background(), nil, c.ID)
	if err != nil {
		t.Fatalf("reload contract: %v", err)
	}
	if got.Status != types.StatusActive {
		t.Fatalf("persisted status = %q, want active", got.Status)
	}
	if got.SignedAt == nil {
		t.Fatal("signed_at not set on fully signed contract")
	}

	count, err := f.signatures.CountByContract(context.Background(), nil, c.ID)
	if err != nil {
		t.Fatalf("count signatures: %v", err)
	}
	if count != 2 {
		t.Fatalf("signature count = %d, want 2", count)
	}
}

func TestCompleteSigningConsumesSessionExactlyOnce(t *testing.T) {
	f := newSigningFixture(t)
	c := f.seedContract(t, types.StatusDraft)
	session := f.openSession(t, c, c.TenantID, types.RoleTenant)

	const racers = 4
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.agg.CompleteSigning(context.Background(),
				completeInput(c, session.SessionID, c.TenantID, types.RoleTenant))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		if !domainagg.IsCode(err, domainagg.CodeConflict) && !domainagg.IsCode(err, domainagg.CodeRetryable) {
			t.Fatalf("loser error = %v, want conflict or retryable", err)
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}

	count, err := f.signatures.CountByContract(context.Background(), nil, c.ID)
	if err != nil {
		t.Fatalf("count signatures: %v", err)
	}
	if count != 1 {
		t.Fatalf("signature count = %d, want 1", count)
	}

	got, err := f.sessions.GetByID(context.Background(), nil, session.SessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if got.State != types.SessionConsumed {
		t.Fatalf("session state = %q, want consumed", got.State)
	}
}

func TestCompleteSigningRejectsFilledSlot(t *testing.T) {
	f := newSigningFixture(t)
	c := f.seedContract(t, types.StatusDraft)

	first := f.openSession(t, c, c.TenantID, types.RoleTenant)
	if _, err := f.agg.CompleteSigning(context.Background(), completeInput(c, first.SessionID, c.TenantID, types.RoleTenant)); err != nil {
		t.Fatalf("first signature: %v", err)
	}

	second := f.openSession(t, c, c.TenantID, types.RoleTenant)
	_, err := f.agg.CompleteSigning(context.Background(), completeInput(c, second.SessionID, c.TenantID, types.RoleTenant))
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("err = %v, want conflict on filled signature slot", err)
	}

	// The losing transaction must roll back the session consumption too.
	got, err := f.sessions.GetByID(context.Background(), nil, second.SessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if got.State != types.SessionPending {
		t.Fatalf("session state = %q, want pending after rollback", got.State)
	}
}

func TestCloseSessionRequiresPending(t *testing.T) {
	f := newSigningFixture(t)
	c := f.seedContract(t, types.StatusDraft)
	session := f.openSession(t, c, c.TenantID, types.RoleTenant)

	in := domainagg.CloseSessionInput{
		SessionID:  session.SessionID,
		ContractID: c.ID,
		Reason:     "attempt budget exhausted",
	}
	if _, err := f.agg.FailSession(context.Background(), in); err != nil {
		t.Fatalf("first fail: %v", err)
	}
	_, err := f.agg.FailSession(context.Background(), in)
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("second fail err = %v, want conflict", err)
	}

	got, err := f.sessions.GetByID(context.Background(), nil, session.SessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if got.State != types.SessionFailed {
		t.Fatalf("session state = %q, want failed", got.State)
	}
}

func TestExpireSessionRecordsAudit(t *testing.T) {
	f := newSigningFixture(t)
	c := f.seedContract(t, types.StatusDraft)
	session := f.openSession(t, c, c.TenantID, types.RoleTenant)

	if _, err := f.agg.ExpireSession(context.Background(), domainagg.CloseSessionInput{
		SessionID:  session.SessionID,
		ContractID: c.ID,
		Reason:     "ttl elapsed",
	}); err != nil {
		t.Fatalf("expire: %v", err)
	}

	entries, err := f.audit.ListByContract(context.Background(), nil, c.ID)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Action == types.AuditSessionExpired {
			found = true
		}
	}
	if !found {
		t.Fatal("no session_expired audit entry")
	}
}
