package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/rentline-backend/internal/domain/aggregates"
	types "github.com/yungbote/rentline-backend/internal/domain/contract"
)

func TestCreateSessionMasksTargetAndDispatchesCode(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)

	res, err := f.signingSvc.CreateSession(context.Background(), CreateSessionInput{
		ContractCode: c.Code,
		SignerID:     f.tenantID,
		Channel:      types.ChannelSMS,
		Actor:        f.actor(f.tenantID),
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if !res.Dispatched {
		t.Fatal("expected code to dispatch")
	}
	if res.ContractStatus != types.StatusPendingSignature {
		t.Fatalf("contract status = %q", res.ContractStatus)
	}
	if res.MaskedTarget == "+84987654321" || !strings.Contains(res.MaskedTarget, "*") {
		t.Fatalf("target not masked: %q", res.MaskedTarget)
	}
	if code := f.sender.code(); len(code) != types.CodeLength {
		t.Fatalf("dispatched code %q, want %d digits", code, types.CodeLength)
	}

	session, err := f.sessions.GetByID(context.Background(), nil, res.SessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.CodeHash == f.sender.code() {
		t.Fatal("code stored in plaintext")
	}
	if session.DispatchedAt == nil {
		t.Fatal("dispatch timestamp not recorded")
	}
}

func TestCreateSessionSurvivesDispatchFailure(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)
	f.sender.failNext = true

	res, err := f.signingSvc.CreateSession(context.Background(), CreateSessionInput{
		ContractCode: c.Code,
		SignerID:     f.tenantID,
		Channel:      types.ChannelSMS,
		Actor:        f.actor(f.tenantID),
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if res.Dispatched {
		t.Fatal("dispatch reported success")
	}

	session, err := f.sessions.GetByID(context.Background(), nil, res.SessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.State != types.SessionPending {
		t.Fatalf("session state = %q, want pending", session.State)
	}
	if session.DispatchError == "" {
		t.Fatal("dispatch error not recorded on the row")
	}
}

func TestCreateSessionRejectsNonParty(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)

	_, err := f.signingSvc.CreateSession(context.Background(), CreateSessionInput{
		ContractCode: c.Code,
		SignerID:     uuid.New(),
		Channel:      types.ChannelSMS,
	})
	if !errors.Is(err, types.ErrNotAParty) {
		t.Fatalf("err = %v, want ErrNotAParty", err)
	}
}

func TestCreateSessionSupersedesPrevious(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)

	first, err := f.signingSvc.CreateSession(context.Background(), CreateSessionInput{
		ContractCode: c.Code, SignerID: f.tenantID, Channel: types.ChannelSMS, Actor: f.actor(f.tenantID),
	})
	if err != nil {
		t.Fatalf("first session: %v", err)
	}
	second, err := f.signingSvc.CreateSession(context.Background(), CreateSessionInput{
		ContractCode: c.Code, SignerID: f.tenantID, Channel: types.ChannelSMS, Actor: f.actor(f.tenantID),
	})
	if err != nil {
		t.Fatalf("second session: %v", err)
	}
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

func TestVerifyWrongCodeBurnsAttemptsThenFails(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)

	created, err := f.signingSvc.CreateSession(context.Background(), CreateSessionInput{
		ContractCode: c.Code, SignerID: f.tenantID, Channel: types.ChannelSMS, Actor: f.actor(f.tenantID),
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	attempt := func() error {
		_, err := f.signingSvc.VerifyAndSign(context.Background(), VerifyInput{
			SessionID: created.SessionID,
			SignerID:  f.tenantID,
			Code:      "000000",
			Capture:   f.capture(t),
			Request:   f.requestFacts(),
			Actor:     f.actor(f.tenantID),
		})
		return err
	}

	for i := 0; i < types.SessionMaxAttempts-1; i++ {
		if err := attempt(); !errors.Is(err, types.ErrInvalidCode) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidCode", i+1, err)
		}
	}
	if err := attempt(); !errors.Is(err, types.ErrMaxAttemptsExceeded) {
		t.Fatalf("final attempt: err = %v, want ErrMaxAttemptsExceeded", err)
	}

	// Even the correct code is dead once the budget is gone.
	_, err = f.signingSvc.VerifyAndSign(context.Background(), VerifyInput{
		SessionID: created.SessionID,
		SignerID:  f.tenantID,
		Code:      f.sender.code(),
		Capture:   f.capture(t),
		Request:   f.requestFacts(),
		Actor:     f.actor(f.tenantID),
	})
	if !errors.Is(err, types.ErrMaxAttemptsExceeded) {
		t.Fatalf("post-budget verify: err = %v, want ErrMaxAttemptsExceeded", err)
	}

	session, err := f.sessions.GetByID(context.Background(), nil, created.SessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.State != types.SessionFailed {
		t.Fatalf("session state = %q, want failed", session.State)
	}
}

func TestVerifyExpiredSession(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)

	created, err := f.signingSvc.CreateSession(context.Background(), CreateSessionInput{
		ContractCode: c.Code, SignerID: f.tenantID, Channel: types.ChannelSMS, Actor: f.actor(f.tenantID),
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	past := time.Now().UTC().Add(-time.Minute)
	if err := f.db.Model(&types.SigningSession{}).
		Where("id = ?", created.SessionID).
		Update("expires_at", past).Error; err != nil {
		t.Fatalf("backdate session: %v", err)
	}

	_, err = f.signingSvc.VerifyAndSign(context.Background(), VerifyInput{
		SessionID: created.SessionID,
		SignerID:  f.tenantID,
		Code:      f.sender.code(),
		Capture:   f.capture(t),
		Request:   f.requestFacts(),
		Actor:     f.actor(f.tenantID),
	})
	if !errors.Is(err, types.ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}

	session, err := f.sessions.GetByID(context.Background(), nil, created.SessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.State != types.SessionExpired {
		t.Fatalf("session state = %q, want expired", session.State)
	}
}

func TestVerifyConsumedSessionRejected(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)

	res := f.signParty(t, c.Code, f.tenantID)
	if res.FullySigned {
		t.Fatal("one signature should not fully sign")
	}

	// Replay with the same (now consumed) session.
	records, err := f.signatures.GetByContract(context.Background(), nil, c.ID)
	if err != nil || len(records) != 1 {
		t.Fatalf("signatures = %d, err %v", len(records), err)
	}
	_, err = f.signingSvc.VerifyAndSign(context.Background(), VerifyInput{
		SessionID: records[0].SessionID,
		SignerID:  f.tenantID,
		Code:      f.sender.code(),
		Capture:   f.capture(t),
		Request:   f.requestFacts(),
		Actor:     f.actor(f.tenantID),
	})
	if !errors.Is(err, types.ErrSessionConsumed) {
		t.Fatalf("err = %v, want ErrSessionConsumed", err)
	}
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)

	created, err := f.signingSvc.CreateSession(context.Background(), CreateSessionInput{
		ContractCode: c.Code, SignerID: f.tenantID, Channel: types.ChannelSMS, Actor: f.actor(f.tenantID),
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	_, err = f.signingSvc.VerifyAndSign(context.Background(), VerifyInput{
		SessionID: created.SessionID,
		SignerID:  f.landlordID,
		Code:      f.sender.code(),
		Capture:   f.capture(t),
		Request:   f.requestFacts(),
		Actor:     f.actor(f.landlordID),
	})
	if !errors.Is(err, types.ErrNotAParty) {
		t.Fatalf("err = %v, want ErrNotAParty", err)
	}
}

func TestVerifyRechecksStatutoryConditionsBeforeActivation(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)
	f.signParty(t, c.Code, f.tenantID)

	// The tenant's directory record changes after the draft-time validation
	// passed: they are now under eighteen.
	f.directory.parties[f.tenantID].BirthDate = time.Now().UTC().AddDate(-16, 0, 0)

	created, err := f.signingSvc.CreateSession(context.Background(), CreateSessionInput{
		ContractCode: c.Code, SignerID: f.landlordID, Channel: types.ChannelSMS, Actor: f.actor(f.landlordID),
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	_, err = f.signingSvc.VerifyAndSign(context.Background(), VerifyInput{
		SessionID: created.SessionID,
		SignerID:  f.landlordID,
		Code:      f.sender.code(),
		Capture:   f.capture(t),
		Request:   f.requestFacts(),
		Actor:     f.actor(f.landlordID),
	})
	var ce *ComplianceError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ComplianceError", err)
	}
	if ce.Report.Flags.LegalCapacity {
		t.Fatal("legal capacity flag should fail for a minor tenant")
	}

	got, err := f.contracts.GetByCode(context.Background(), nil, c.Code)
	if err != nil {
		t.Fatalf("load contract: %v", err)
	}
	if got.Status != types.StatusPartiallySigned {
		t.Fatalf("contract status = %q, want partially_signed", got.Status)
	}
	if _, err := f.signatures.GetBySlot(context.Background(), nil, c.ID, types.RoleLandlord); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("landlord slot lookup = %v, want not found", err)
	}
	if f.announcer.count(types.AuditComplianceFailed) == 0 {
		t.Fatal("compliance rejection not announced")
	}

	// Rejection does not burn the session.
	session, err := f.sessions.GetByID(context.Background(), nil, created.SessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.State != types.SessionPending {
		t.Fatalf("session state = %q, want pending", session.State)
	}
}

func TestAuditEventsAnnouncedAfterCommit(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)
	f.signParty(t, c.Code, f.tenantID)
	res := f.signParty(t, c.Code, f.landlordID)
	if !res.FullySigned {
		t.Fatal("expected fully signed contract")
	}
	if _, err := f.documentSvc.StoreDocument(context.Background(), c.Code, f.actor(f.landlordID)); err != nil {
		t.Fatalf("store document: %v", err)
	}

	want := map[string]int{
		types.AuditContractCreated:    1,
		types.AuditSessionCreated:     2,
		types.AuditSessionDispatched:  2,
		types.AuditSignatureRecorded:  2,
		types.AuditContractTransition: 1,
		types.AuditArtifactStored:     1,
	}
	for action, n := range want {
		if got := f.announcer.count(action); got != n {
			t.Errorf("announced %q %d times, want %d", action, got, n)
		}
	}
}

func TestVerifyLosingConsumeRaceReportsConsumed(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)

	created, err := f.signingSvc.CreateSession(context.Background(), CreateSessionInput{
		ContractCode: c.Code, SignerID: f.tenantID, Channel: types.ChannelSMS, Actor: f.actor(f.tenantID),
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	session, err := f.sessions.GetByID(context.Background(), nil, created.SessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}

	// A concurrent attempt with the same code wins the consume compare-and-set
	// first; the stale attempt then completes against a consumed session.
	if _, err := f.agg.CompleteSigning(context.Background(), domainagg.CompleteSigningInput{
		SessionID:   session.ID,
		ContractID:  session.ContractID,
		SignerID:    session.SignerID,
		Role:        types.RoleTenant,
		ImageKey:    "captures/" + c.Code + "/race-winner.png",
		ImageHash:   "race-winner-hash",
		ContentHash: "race-content-hash",
		Evidence:    []byte(`{}`),
		SignedAt:    time.Now().UTC(),
		Actor:       f.actor(f.tenantID),
	}); err != nil {
		t.Fatalf("winning completion: %v", err)
	}

	_, err = f.signingSvc.recordSignature(context.Background(), session, VerifyInput{
		SessionID: session.ID,
		SignerID:  f.tenantID,
		Code:      f.sender.code(),
		Capture:   f.capture(t),
		Request:   f.requestFacts(),
		Actor:     f.actor(f.tenantID),
	}, 1, time.Now().UTC())
	if !errors.Is(err, types.ErrSessionConsumed) {
		t.Fatalf("err = %v, want ErrSessionConsumed", err)
	}
}

func TestSecondSignerCannotOpenSessionForFilledSlot(t *testing.T) {
	f := newServiceFixture(t)
	c := f.createDraft(t)
	f.signParty(t, c.Code, f.tenantID)

	_, err := f.signingSvc.CreateSession(context.Background(), CreateSessionInput{
		ContractCode: c.Code, SignerID: f.tenantID, Channel: types.ChannelSMS, Actor: f.actor(f.tenantID),
	})
	if !errors.Is(err, types.ErrAlreadySigned) {
		t.Fatalf("err = %v, want ErrAlreadySigned", err)
	}
}
