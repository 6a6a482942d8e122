package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/rentline-backend/internal/artifacts"
	"github.com/yungbote/rentline-backend/internal/config"
	"github.com/yungbote/rentline-backend/internal/data/aggregates"
	"github.com/yungbote/rentline-backend/internal/data/repos"
	"github.com/yungbote/rentline-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/rentline-backend/internal/domain/aggregates"
	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/evidence"
	"github.com/yungbote/rentline-backend/internal/messaging"
	"github.com/yungbote/rentline-backend/internal/render"
)

// fakeDirectory serves two adult parties and one listed property.
type fakeDirectory struct {
	parties  map[uuid.UUID]*PartyProfile
	property *PropertyInfo
}

func (d *fakeDirectory) GetParty(_ context.Context, id uuid.UUID) (*PartyProfile, error) {
	p, ok := d.parties[id]
	if !ok {
		return nil, fmt.Errorf("party %s not found", id)
	}
	return p, nil
}

func (d *fakeDirectory) GetProperty(_ context.Context, ref string) (*PropertyInfo, error) {
	if d.property == nil || d.property.Ref != ref {
		return nil, fmt.Errorf("property %s not found", ref)
	}
	return d.property, nil
}

// fakeSender captures dispatched codes per session target so tests can
// verify with the real code. failNext makes the next dispatch fail.
type fakeSender struct {
	mu       sync.Mutex
	lastCode string
	lastBody messaging.CodeMessage
	failNext bool
	sent     int
}

func (s *fakeSender) SendCode(_ context.Context, _ types.Channel, _ string, msg messaging.CodeMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return fmt.Errorf("carrier unavailable")
	}
	s.lastCode = msg.Code
	s.lastBody = msg
	s.sent++
	return nil
}

func (s *fakeSender) code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCode
}

// fakeAnnouncer records post-commit audit announcements.
type fakeAnnouncer struct {
	mu      sync.Mutex
	actions []string
}

func (a *fakeAnnouncer) Announce(_ context.Context, _ *types.Contract, row *types.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, row.Action)
}

func (a *fakeAnnouncer) count(action string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, got := range a.actions {
		if got == action {
			n++
		}
	}
	return n
}

type serviceFixture struct {
	db         *gorm.DB
	contracts  repos.ContractRepo
	sessions   repos.SigningSessionRepo
	signatures repos.SignatureRecordRepo
	audit      repos.AuditEntryRepo
	runner     aggregates.TxRunner

	landlordID uuid.UUID
	tenantID   uuid.UUID
	directory  *fakeDirectory
	sender     *fakeSender
	announcer  *fakeAnnouncer
	agg        domainagg.SigningAggregate

	contractSvc *ContractService
	signingSvc  *SigningService
	documentSvc *DocumentService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	f := &serviceFixture{
		db:         db,
		contracts:  repos.NewContractRepo(db, log),
		sessions:   repos.NewSigningSessionRepo(db, log),
		signatures: repos.NewSignatureRecordRepo(db, log),
		audit:      repos.NewAuditEntryRepo(db, log),
		runner:     aggregates.NewGormTxRunner(db),
		landlordID: uuid.New(),
		tenantID:   uuid.New(),
		sender:     &fakeSender{},
		announcer:  &fakeAnnouncer{},
	}
	f.directory = &fakeDirectory{
		parties: map[uuid.UUID]*PartyProfile{
			f.landlordID: {
				UserID:           f.landlordID,
				FullName:         "Nguyen Van An",
				IDNumber:         "079084001234",
				IDIssuedBy:       "Cuc CSQLHC ve TTXH",
				IDIssuedAt:       time.Date(2021, 3, 10, 0, 0, 0, 0, time.UTC),
				BirthDate:        time.Date(1984, 5, 20, 0, 0, 0, 0, time.UTC),
				PermanentAddress: "12 Le Loi, Quan 1, TP HCM",
				Phone:            "+84912345678",
				Email:            "an.nguyen@example.vn",
				ConsentRecorded:  true,
			},
			f.tenantID: {
				UserID:          f.tenantID,
				FullName:        "Tran Thi Binh",
				IDNumber:        "079199005678",
				BirthDate:       time.Date(1999, 11, 2, 0, 0, 0, 0, time.UTC),
				ContactAddress:  "45 Nguyen Hue, Quan 1, TP HCM",
				Phone:           "+84987654321",
				Email:           "binh.tran@example.vn",
				ConsentRecorded: true,
			},
		},
		property: &PropertyInfo{
			Ref:        "listing-42",
			Address:    "Can ho 12A, 100 Vo Van Tan, Quan 3, TP HCM",
			Purpose:    "residential",
			HouseRules: []string{"Khong nuoi thu cung / No pets"},
		},
	}

	f.agg = aggregates.NewSigningAggregate(aggregates.SigningAggregateDeps{
		Base:       aggregates.BaseDeps{DB: db, Log: log},
		Contracts:  f.contracts,
		Sessions:   f.sessions,
		Signatures: f.signatures,
		Audit:      f.audit,
	})

	captures, err := artifacts.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("capture store: %v", err)
	}

	f.contractSvc = NewContractService(log, f.contracts, f.audit, f.runner, f.directory, f.announcer, nil)

	f.signingSvc, err = NewSigningService(SigningServiceDeps{
		Log:        log,
		Cfg:        config.SigningConfig{SessionTTL: types.SessionTTL, MaxAttempts: types.SessionMaxAttempts, CodeLength: types.CodeLength},
		Contracts:  f.contracts,
		Sessions:   f.sessions,
		Signatures: f.signatures,
		Audit:      f.audit,
		Runner:     f.runner,
		Aggregate:  f.agg,
		Sender:     f.sender,
		Directory:  f.directory,
		Captures:   captures,
		Announcer:  f.announcer,
	})
	if err != nil {
		t.Fatalf("signing service: %v", err)
	}

	renderer, err := render.NewRenderer(log)
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	signer, err := artifacts.NewURLSigner([]byte("test-url-secret"), "https://api.rentline.test/artifacts/download")
	if err != nil {
		t.Fatalf("url signer: %v", err)
	}
	local, err := artifacts.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	key := bytes.Repeat([]byte{0x42}, 32)
	store, err := artifacts.NewStore(artifacts.StoreDeps{
		Log:           log,
		Local:         local,
		Repo:          repos.NewArtifactRepo(db, log),
		Audit:         f.audit,
		Runner:        f.runner,
		Signer:        signer,
		EncryptionKey: key,
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	f.documentSvc, err = NewDocumentService(DocumentServiceDeps{
		Log:        log,
		Contracts:  f.contracts,
		Signatures: f.signatures,
		Directory:  f.directory,
		Renderer:   renderer,
		Store:      store,
		Captures:   captures,
		Announcer:  f.announcer,
	})
	if err != nil {
		t.Fatalf("document service: %v", err)
	}
	return f
}

func (f *serviceFixture) actor(id uuid.UUID) domainagg.ActorMeta {
	return domainagg.ActorMeta{
		ActorID:   id,
		RequestID: uuid.NewString(),
		IP:        "203.113.131.1",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
	}
}

func (f *serviceFixture) createDraft(t *testing.T) *types.Contract {
	t.Helper()
	c, err := f.contractSvc.CreateDraft(context.Background(), CreateDraftInput{
		Title:       "Hop dong thue can ho 12A",
		LandlordID:  f.landlordID,
		TenantID:    f.tenantID,
		PropertyRef: "listing-42",
		Terms: types.FinancialTerms{
			MonthlyRent:   12_000_000,
			DepositAmount: 24_000_000,
			Currency:      "VND",
			PaymentDay:    5,
		},
		StartDate: time.Now().UTC().AddDate(0, 0, 7),
		EndDate:   time.Now().UTC().AddDate(1, 0, 7),
		Actor:     f.actor(f.landlordID),
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	return c
}

func (f *serviceFixture) capture(t *testing.T) CaptureInput {
	t.Helper()
	return CaptureInput{
		ImagePNG:    tinyPNG(t),
		StrokeCount: 14,
		DurationMs:  2300,
		Width:       400,
		Height:      160,
	}
}

func (f *serviceFixture) requestFacts() evidence.RequestFacts {
	return evidence.RequestFacts{
		IP:           "203.113.131.1",
		UserAgent:    "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
		Timezone:     "Asia/Ho_Chi_Minh",
		ScreenWidth:  390,
		ScreenHeight: 844,
	}
}

// signParty drives one full session + verification for a signer.
func (f *serviceFixture) signParty(t *testing.T, code string, signerID uuid.UUID) *VerifyResult {
	t.Helper()
	created, err := f.signingSvc.CreateSession(context.Background(), CreateSessionInput{
		ContractCode: code,
		SignerID:     signerID,
		Channel:      types.ChannelSMS,
		Actor:        f.actor(signerID),
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	res, err := f.signingSvc.VerifyAndSign(context.Background(), VerifyInput{
		SessionID: created.SessionID,
		SignerID:  signerID,
		Code:      f.sender.code(),
		Capture:   f.capture(t),
		Request:   f.requestFacts(),
		Actor:     f.actor(signerID),
	})
	if err != nil {
		t.Fatalf("verify and sign: %v", err)
	}
	return res
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, 4, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
