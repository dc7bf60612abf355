// Package billing implements the two-phase charge protocol: quote issues a
// one-time transaction token after a sufficiency check, deliver releases the
// gated content against an open quote, and confirm consumes the token and
// performs the actual deduction. No confirm call means no charge; a second
// confirm with the same token never deducts twice.
package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ghostauditor/backend/internal/ledger"
	"github.com/ghostauditor/backend/internal/models"
	"github.com/ghostauditor/backend/internal/pricing"
)

// ErrQuoteNotFound is returned when no open quote matches the token for the
// calling account.
var ErrQuoteNotFound = errors.New("quote not found")

// ErrQuoteExpired is returned for quotes past their expiry; the caller must
// quote again.
var ErrQuoteExpired = errors.New("quote expired")

// ErrGroupNotAllowed is returned when the account's group restriction does
// not cover the requested target.
var ErrGroupNotAllowed = errors.New("group not allowed for account")

// PriceResolver resolves the current cost of a charge target.
type PriceResolver interface {
	Resolve(ctx context.Context, targetKind, targetRef string) (int, error)
}

// QuoteStore persists one-time charge quotes.
type QuoteStore interface {
	Create(ctx context.Context, q *models.ChargeQuote) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ChargeQuote, error)
	ConsumeTx(ctx context.Context, tx pgx.Tx, id, accountID uuid.UUID, chargedCost int) (*models.ChargeQuote, error)
}

// Ledger is the balance interface billing needs.
type Ledger interface {
	Balance(ctx context.Context, accountID uuid.UUID) (int, error)
	Deduct(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int, action string, groupName *string) (int, error)
}

// ContentStore loads the gated scenario payloads.
type ContentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Scenario, error)
	ListActiveByGroup(ctx context.Context, groupName string) ([]*models.Scenario, error)
	ListActive(ctx context.Context) ([]*models.Scenario, error)
}

// GroupLookup validates group targets.
type GroupLookup interface {
	GetByName(ctx context.Context, name string) (*models.ScenarioGroup, error)
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Service struct {
	pool      TxBeginner
	quotes    QuoteStore
	ledger    Ledger
	pricing   PriceResolver
	scenarios ContentStore
	groups    GroupLookup
	quoteTTL  time.Duration
}

func NewService(pool TxBeginner, quotes QuoteStore, ldg Ledger, resolver PriceResolver, scenarios ContentStore, groups GroupLookup, quoteTTL time.Duration) *Service {
	return &Service{
		pool:      pool,
		quotes:    quotes,
		ledger:    ldg,
		pricing:   resolver,
		scenarios: scenarios,
		groups:    groups,
		quoteTTL:  quoteTTL,
	}
}

// QuoteResult carries the minted token plus the balance the sufficiency
// check saw. The cost is advisory: confirm re-resolves it.
type QuoteResult struct {
	Quote   *models.ChargeQuote
	Balance int
}

// ConfirmResult reports the charged amount and the balance after it.
type ConfirmResult struct {
	QuoteID          uuid.UUID
	Cost             int
	Balance          int
	AlreadyConfirmed bool
}

// Quote resolves the target's cost, verifies the account can afford it, and
// mints a one-time quote token. The balance is not touched; funds are only
// moved at confirm.
func (s *Service) Quote(ctx context.Context, acc *models.Account, targetKind, targetRef string) (*QuoteResult, error) {
	if err := s.checkTarget(ctx, acc, targetKind, targetRef); err != nil {
		return nil, err
	}

	cost, err := s.pricing.Resolve(ctx, targetKind, targetRef)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.Balance(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	if balance < cost {
		return nil, ledger.ErrInsufficientFunds
	}

	q := &models.ChargeQuote{
		ID:         uuid.New(),
		AccountID:  acc.ID,
		TargetKind: targetKind,
		TargetRef:  targetRef,
		Cost:       cost,
		Status:     models.QuoteStatusQuoted,
		ExpiresAt:  time.Now().Add(s.quoteTTL),
	}
	if err := s.quotes.Create(ctx, q); err != nil {
		return nil, err
	}
	return &QuoteResult{Quote: q, Balance: balance}, nil
}

// checkTarget validates existence and the per-account group restriction.
func (s *Service) checkTarget(ctx context.Context, acc *models.Account, targetKind, targetRef string) error {
	switch targetKind {
	case models.TargetGroup:
		g, err := s.groups.GetByName(ctx, targetRef)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return pricing.ErrContentNotFound
			}
			return err
		}
		if !g.Active {
			return pricing.ErrContentNotFound
		}
		if !acc.MayAccessGroup(g.Name) {
			return ErrGroupNotAllowed
		}
	case models.TargetScenario:
		id, err := uuid.Parse(targetRef)
		if err != nil {
			return pricing.ErrContentNotFound
		}
		sc, err := s.scenarios.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return pricing.ErrContentNotFound
			}
			return err
		}
		if !sc.Active {
			return pricing.ErrContentNotFound
		}
		if !acc.MayAccessGroup(sc.GroupName) {
			return ErrGroupNotAllowed
		}
	case models.TargetAll:
		// The everything package is only meaningful for unrestricted accounts.
		if len(acc.AllowedGroups) > 0 {
			return ErrGroupNotAllowed
		}
	default:
		return pricing.ErrContentNotFound
	}
	return nil
}

// Deliver releases the gated payload(s) for an open or already-confirmed
// quote. The balance is never touched here.
func (s *Service) Deliver(ctx context.Context, acc *models.Account, quoteID uuid.UUID) ([]*models.Scenario, error) {
	q, err := s.loadOwnQuote(ctx, acc, quoteID)
	if err != nil {
		return nil, err
	}
	if q.Status == models.QuoteStatusExpired || (q.Status == models.QuoteStatusQuoted && time.Now().After(q.ExpiresAt)) {
		return nil, ErrQuoteExpired
	}

	var list []*models.Scenario
	switch q.TargetKind {
	case models.TargetScenario:
		id, perr := uuid.Parse(q.TargetRef)
		if perr != nil {
			return nil, pricing.ErrContentNotFound
		}
		sc, gerr := s.scenarios.GetByID(ctx, id)
		if gerr != nil {
			if errors.Is(gerr, pgx.ErrNoRows) {
				return nil, pricing.ErrContentNotFound
			}
			return nil, gerr
		}
		if !sc.Active {
			return nil, pricing.ErrContentNotFound
		}
		list = []*models.Scenario{sc}
	case models.TargetGroup:
		list, err = s.scenarios.ListActiveByGroup(ctx, q.TargetRef)
	case models.TargetAll:
		list, err = s.scenarios.ListActive(ctx)
	}
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, pricing.ErrContentNotFound
	}
	return list, nil
}

// Confirm consumes the quote token and performs the deduction, both inside
// one transaction. The cost is re-resolved here (a price quoted earlier is
// never trusted) and the sufficiency check happens again inside the
// conditional balance update. Confirming an already-confirmed quote is
// idempotent: the recorded outcome is returned and nothing is deducted.
func (s *Service) Confirm(ctx context.Context, acc *models.Account, quoteID uuid.UUID) (*ConfirmResult, error) {
	q, err := s.loadOwnQuote(ctx, acc, quoteID)
	if err != nil {
		return nil, err
	}
	if q.Status == models.QuoteStatusConfirmed {
		return s.confirmedResult(ctx, acc, q)
	}
	if q.Status == models.QuoteStatusExpired || time.Now().After(q.ExpiresAt) {
		return nil, ErrQuoteExpired
	}

	cost, err := s.pricing.Resolve(ctx, q.TargetKind, q.TargetRef)
	if err != nil {
		return nil, err
	}
	action, entryGroup, err := s.entryDetails(ctx, q)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := s.quotes.ConsumeTx(ctx, tx, q.ID, acc.ID, cost); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a race: some concurrent call consumed or expired it first.
			return s.resolveConsumeRace(ctx, acc, q.ID)
		}
		return nil, err
	}

	newBalance, err := s.ledger.Deduct(ctx, tx, acc.ID, cost, action, entryGroup)
	if err != nil {
		// Rollback leaves the quote open, so the caller can top up and
		// confirm again with the same token.
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &ConfirmResult{QuoteID: q.ID, Cost: cost, Balance: newBalance}, nil
}

func (s *Service) loadOwnQuote(ctx context.Context, acc *models.Account, quoteID uuid.UUID) (*models.ChargeQuote, error) {
	q, err := s.quotes.GetByID(ctx, quoteID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuoteNotFound
		}
		return nil, err
	}
	// A foreign quote reads as not-found; ownership is not disclosed.
	if q.AccountID != acc.ID {
		return nil, ErrQuoteNotFound
	}
	return q, nil
}

func (s *Service) confirmedResult(ctx context.Context, acc *models.Account, q *models.ChargeQuote) (*ConfirmResult, error) {
	balance, err := s.ledger.Balance(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{QuoteID: q.ID, Cost: q.Cost, Balance: balance, AlreadyConfirmed: true}, nil
}

func (s *Service) resolveConsumeRace(ctx context.Context, acc *models.Account, quoteID uuid.UUID) (*ConfirmResult, error) {
	q, err := s.loadOwnQuote(ctx, acc, quoteID)
	if err != nil {
		return nil, err
	}
	switch q.Status {
	case models.QuoteStatusConfirmed:
		return s.confirmedResult(ctx, acc, q)
	case models.QuoteStatusExpired:
		return nil, ErrQuoteExpired
	default:
		if time.Now().After(q.ExpiresAt) {
			return nil, ErrQuoteExpired
		}
		return nil, ErrQuoteNotFound
	}
}

// entryDetails maps the quote target to the ledger action and group ref.
func (s *Service) entryDetails(ctx context.Context, q *models.ChargeQuote) (string, *string, error) {
	switch q.TargetKind {
	case models.TargetGroup:
		group := q.TargetRef
		return models.ActionRunGroup, &group, nil
	case models.TargetScenario:
		id, err := uuid.Parse(q.TargetRef)
		if err != nil {
			return "", nil, pricing.ErrContentNotFound
		}
		sc, err := s.scenarios.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", nil, pricing.ErrContentNotFound
			}
			return "", nil, err
		}
		return models.ActionRunScenario, &sc.GroupName, nil
	default:
		return models.ActionRunAll, nil, nil
	}
}
