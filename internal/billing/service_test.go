package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ghostauditor/backend/internal/ledger"
	"github.com/ghostauditor/backend/internal/models"
	"github.com/ghostauditor/backend/internal/pricing"
)

// ---------------------------------------------------------------------------
// fakeTx satisfies pgx.Tx and replays registered undo functions on rollback,
// so the quote-left-open-after-failed-deduction behavior can be asserted.
// ---------------------------------------------------------------------------

type fakeTx struct {
	pgx.Tx
	mu   sync.Mutex
	undo []func()
}

func (t *fakeTx) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undo = nil
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	return nil
}

func (t *fakeTx) onRollback(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undo = append(t.undo, fn)
}

type fakePool struct{}

func (fakePool) Begin(context.Context) (pgx.Tx, error) { return &fakeTx{}, nil }

// ---------------------------------------------------------------------------
// In-memory mocks.
// ---------------------------------------------------------------------------

type mockQuotes struct {
	mu     sync.Mutex
	quotes map[uuid.UUID]*models.ChargeQuote
}

func newMockQuotes() *mockQuotes {
	return &mockQuotes{quotes: make(map[uuid.UUID]*models.ChargeQuote)}
}

func (m *mockQuotes) Create(_ context.Context, q *models.ChargeQuote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *q
	cp.CreatedAt = time.Now()
	m.quotes[q.ID] = &cp
	return nil
}

func (m *mockQuotes) GetByID(_ context.Context, id uuid.UUID) (*models.ChargeQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *q
	return &cp, nil
}

func (m *mockQuotes) ConsumeTx(_ context.Context, tx pgx.Tx, id, accountID uuid.UUID, chargedCost int) (*models.ChargeQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok || q.AccountID != accountID || q.Status != models.QuoteStatusQuoted || !time.Now().Before(q.ExpiresAt) {
		return nil, pgx.ErrNoRows
	}
	prev := *q
	q.Status = models.QuoteStatusConfirmed
	q.Cost = chargedCost
	now := time.Now()
	q.ConfirmedAt = &now
	if ft, ok := tx.(*fakeTx); ok {
		ft.onRollback(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			restored := prev
			m.quotes[id] = &restored
		})
	}
	cp := *q
	return &cp, nil
}

func (m *mockQuotes) status(id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quotes[id].Status
}

// ---

type mockLedger struct {
	mu        sync.Mutex
	balances  map[uuid.UUID]int
	deducted  []int
	deductErr error
}

func newMockLedger() *mockLedger {
	return &mockLedger{balances: make(map[uuid.UUID]int)}
}

func (m *mockLedger) Balance(_ context.Context, accountID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[accountID]
	if !ok {
		return 0, ledger.ErrAccountNotFound
	}
	return b, nil
}

func (m *mockLedger) Deduct(_ context.Context, _ pgx.Tx, accountID uuid.UUID, amount int, _ string, _ *string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deductErr != nil {
		return 0, m.deductErr
	}
	b := m.balances[accountID]
	if b < amount {
		return 0, ledger.ErrInsufficientFunds
	}
	m.balances[accountID] = b - amount
	m.deducted = append(m.deducted, amount)
	return m.balances[accountID], nil
}

func (m *mockLedger) deductions() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.deducted))
	copy(out, m.deducted)
	return out
}

// ---

type mockResolver struct {
	mu    sync.Mutex
	costs map[string]int
}

func newMockResolver() *mockResolver {
	return &mockResolver{costs: make(map[string]int)}
}

func (m *mockResolver) set(kind, ref string, cost int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.costs[kind+"/"+ref] = cost
}

func (m *mockResolver) Resolve(_ context.Context, kind, ref string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cost, ok := m.costs[kind+"/"+ref]
	if !ok {
		return 0, pricing.ErrContentNotFound
	}
	return cost, nil
}

// ---

type mockContent struct {
	scenarios map[uuid.UUID]*models.Scenario
}

func newMockContent(scs ...*models.Scenario) *mockContent {
	m := &mockContent{scenarios: make(map[uuid.UUID]*models.Scenario)}
	for _, s := range scs {
		m.scenarios[s.ID] = s
	}
	return m
}

func (m *mockContent) GetByID(_ context.Context, id uuid.UUID) (*models.Scenario, error) {
	s, ok := m.scenarios[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return s, nil
}

func (m *mockContent) ListActiveByGroup(_ context.Context, groupName string) ([]*models.Scenario, error) {
	var out []*models.Scenario
	for _, s := range m.scenarios {
		if s.GroupName == groupName && s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockContent) ListActive(_ context.Context) ([]*models.Scenario, error) {
	var out []*models.Scenario
	for _, s := range m.scenarios {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

// ---

type mockGroupLookup struct {
	groups map[string]*models.ScenarioGroup
}

func newMockGroupLookup(gs ...*models.ScenarioGroup) *mockGroupLookup {
	m := &mockGroupLookup{groups: make(map[string]*models.ScenarioGroup)}
	for _, g := range gs {
		m.groups[g.Name] = g
	}
	return m
}

func (m *mockGroupLookup) GetByName(_ context.Context, name string) (*models.ScenarioGroup, error) {
	g, ok := m.groups[name]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return g, nil
}

// ---------------------------------------------------------------------------
// Fixture: one active "web" group at 100 credits with one active scenario,
// and an account holding 150 credits.
// ---------------------------------------------------------------------------

type fixture struct {
	svc      *Service
	acc      *models.Account
	ledger   *mockLedger
	quotes   *mockQuotes
	resolver *mockResolver
	scenario *models.Scenario
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sc := &models.Scenario{ID: uuid.New(), GroupName: "web", Title: "header check", Code: "payload", Active: true}
	group := &models.ScenarioGroup{Name: "web", Active: true}

	resolver := newMockResolver()
	resolver.set(models.TargetGroup, "web", 100)
	resolver.set(models.TargetScenario, sc.ID.String(), 100)
	resolver.set(models.TargetAll, "", 160)

	ldg := newMockLedger()
	acc := &models.Account{ID: uuid.New(), Status: models.StatusActive}
	ldg.balances[acc.ID] = 150

	quotes := newMockQuotes()
	svc := NewService(fakePool{}, quotes, ldg, resolver, newMockContent(sc), newMockGroupLookup(group), 15*time.Minute)
	return &fixture{svc: svc, acc: acc, ledger: ldg, quotes: quotes, resolver: resolver, scenario: sc}
}

// ---------------------------------------------------------------------------
// 1. TestQuoteGroup
// ---------------------------------------------------------------------------

func TestQuoteGroup(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Quote(context.Background(), f.acc, models.TargetGroup, "web")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if res.Quote.Cost != 100 || res.Balance != 150 {
		t.Errorf("quote: cost=%d balance=%d, want 100/150", res.Quote.Cost, res.Balance)
	}
	if res.Quote.Status != models.QuoteStatusQuoted {
		t.Errorf("status: got %s, want quoted", res.Quote.Status)
	}
	// Quoting holds no funds.
	if b, _ := f.ledger.Balance(context.Background(), f.acc.ID); b != 150 {
		t.Errorf("balance after quote: got %d, want 150", b)
	}
}

// ---------------------------------------------------------------------------
// 2. TestQuoteInsufficientFunds
// ---------------------------------------------------------------------------

func TestQuoteInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	f.resolver.set(models.TargetGroup, "web", 500)
	_, err := f.svc.Quote(context.Background(), f.acc, models.TargetGroup, "web")
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// 3. TestQuoteUnknownTarget
// ---------------------------------------------------------------------------

func TestQuoteUnknownTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Quote(ctx, f.acc, models.TargetGroup, "no-such-group"); !errors.Is(err, pricing.ErrContentNotFound) {
		t.Errorf("unknown group: expected ErrContentNotFound, got %v", err)
	}
	if _, err := f.svc.Quote(ctx, f.acc, models.TargetScenario, uuid.New().String()); !errors.Is(err, pricing.ErrContentNotFound) {
		t.Errorf("unknown scenario: expected ErrContentNotFound, got %v", err)
	}
	if _, err := f.svc.Quote(ctx, f.acc, "bundle", "x"); !errors.Is(err, pricing.ErrContentNotFound) {
		t.Errorf("unknown kind: expected ErrContentNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// 4. TestQuoteGroupRestriction
// ---------------------------------------------------------------------------

func TestQuoteGroupRestriction(t *testing.T) {
	f := newFixture(t)
	f.acc.AllowedGroups = []string{"network"}
	ctx := context.Background()

	if _, err := f.svc.Quote(ctx, f.acc, models.TargetGroup, "web"); !errors.Is(err, ErrGroupNotAllowed) {
		t.Errorf("restricted group: expected ErrGroupNotAllowed, got %v", err)
	}
	if _, err := f.svc.Quote(ctx, f.acc, models.TargetScenario, f.scenario.ID.String()); !errors.Is(err, ErrGroupNotAllowed) {
		t.Errorf("scenario in restricted group: expected ErrGroupNotAllowed, got %v", err)
	}
	// The everything package is off limits for restricted accounts.
	if _, err := f.svc.Quote(ctx, f.acc, models.TargetAll, ""); !errors.Is(err, ErrGroupNotAllowed) {
		t.Errorf("all-groups for restricted account: expected ErrGroupNotAllowed, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// 5. TestDeliver
// ---------------------------------------------------------------------------

func TestDeliver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Quote(ctx, f.acc, models.TargetGroup, "web")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	list, err := f.svc.Deliver(ctx, f.acc, res.Quote.ID)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(list) != 1 || list[0].Code != "payload" {
		t.Fatalf("delivered content: %+v", list)
	}
	// Delivery holds no funds either.
	if b, _ := f.ledger.Balance(ctx, f.acc.ID); b != 150 {
		t.Errorf("balance after deliver: got %d, want 150", b)
	}
}

// ---------------------------------------------------------------------------
// 6. TestDeliverForeignQuote
//    Another account's quote reads as not-found, not as forbidden.
// ---------------------------------------------------------------------------

func TestDeliverForeignQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Quote(ctx, f.acc, models.TargetGroup, "web")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	other := &models.Account{ID: uuid.New(), Status: models.StatusActive}
	if _, err := f.svc.Deliver(ctx, other, res.Quote.ID); !errors.Is(err, ErrQuoteNotFound) {
		t.Fatalf("expected ErrQuoteNotFound for foreign quote, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// 7. TestConfirm
// ---------------------------------------------------------------------------

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Quote(ctx, f.acc, models.TargetGroup, "web")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	conf, err := f.svc.Confirm(ctx, f.acc, res.Quote.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if conf.Cost != 100 || conf.Balance != 50 || conf.AlreadyConfirmed {
		t.Errorf("confirm: cost=%d balance=%d already=%v, want 100/50/false", conf.Cost, conf.Balance, conf.AlreadyConfirmed)
	}
	if got := f.quotes.status(res.Quote.ID); got != models.QuoteStatusConfirmed {
		t.Errorf("quote status: got %s, want confirmed", got)
	}
}

// ---------------------------------------------------------------------------
// 8. TestDoubleConfirmDeductsOnce
// ---------------------------------------------------------------------------

func TestDoubleConfirmDeductsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Quote(ctx, f.acc, models.TargetGroup, "web")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	if _, err := f.svc.Confirm(ctx, f.acc, res.Quote.ID); err != nil {
		t.Fatalf("first Confirm: %v", err)
	}
	second, err := f.svc.Confirm(ctx, f.acc, res.Quote.ID)
	if err != nil {
		t.Fatalf("second Confirm: %v", err)
	}
	if !second.AlreadyConfirmed {
		t.Error("second confirm should report already_confirmed")
	}
	if second.Cost != 100 || second.Balance != 50 {
		t.Errorf("second confirm: cost=%d balance=%d, want 100/50", second.Cost, second.Balance)
	}
	if got := f.ledger.deductions(); len(got) != 1 {
		t.Fatalf("deductions: got %v, want exactly one", got)
	}
}

// ---------------------------------------------------------------------------
// 9. TestConfirmChargesCurrentPrice
//    A price change between quote and confirm charges the new price.
// ---------------------------------------------------------------------------

func TestConfirmChargesCurrentPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Quote(ctx, f.acc, models.TargetGroup, "web")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	f.resolver.set(models.TargetGroup, "web", 130)
	conf, err := f.svc.Confirm(ctx, f.acc, res.Quote.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if conf.Cost != 130 || conf.Balance != 20 {
		t.Errorf("confirm after price change: cost=%d balance=%d, want 130/20", conf.Cost, conf.Balance)
	}
}

// ---------------------------------------------------------------------------
// 10. TestConfirmInsufficientLeavesQuoteOpen
//     When the balance dropped below the price since quoting, confirm fails
//     and the quote stays open so the caller can top up and retry.
// ---------------------------------------------------------------------------

func TestConfirmInsufficientLeavesQuoteOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Quote(ctx, f.acc, models.TargetGroup, "web")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	f.ledger.balances[f.acc.ID] = 10
	if _, err := f.svc.Confirm(ctx, f.acc, res.Quote.ID); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got: %v", err)
	}
	if got := f.quotes.status(res.Quote.ID); got != models.QuoteStatusQuoted {
		t.Errorf("quote status after failed confirm: got %s, want quoted", got)
	}

	// Top up and retry with the same token.
	f.ledger.balances[f.acc.ID] = 150
	conf, err := f.svc.Confirm(ctx, f.acc, res.Quote.ID)
	if err != nil {
		t.Fatalf("retry Confirm: %v", err)
	}
	if conf.Cost != 100 || conf.AlreadyConfirmed {
		t.Errorf("retry confirm: cost=%d already=%v, want 100/false", conf.Cost, conf.AlreadyConfirmed)
	}
}

// ---------------------------------------------------------------------------
// 11. TestConfirmExpiredQuote
// ---------------------------------------------------------------------------

func TestConfirmExpiredQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Quote(ctx, f.acc, models.TargetGroup, "web")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	f.quotes.mu.Lock()
	f.quotes.quotes[res.Quote.ID].ExpiresAt = time.Now().Add(-time.Minute)
	f.quotes.mu.Unlock()

	if _, err := f.svc.Confirm(ctx, f.acc, res.Quote.ID); !errors.Is(err, ErrQuoteExpired) {
		t.Errorf("confirm: expected ErrQuoteExpired, got %v", err)
	}
	if _, err := f.svc.Deliver(ctx, f.acc, res.Quote.ID); !errors.Is(err, ErrQuoteExpired) {
		t.Errorf("deliver: expected ErrQuoteExpired, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// 12. TestConfirmUnknownQuote
// ---------------------------------------------------------------------------

func TestConfirmUnknownQuote(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Confirm(context.Background(), f.acc, uuid.New()); !errors.Is(err, ErrQuoteNotFound) {
		t.Fatalf("expected ErrQuoteNotFound, got: %v", err)
	}
}
