package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sidvermani/fundflow/internal/domain"
	"github.com/sidvermani/fundflow/internal/store"
)

// fakeStore is an in-memory Repository. Each WithinTx call works on a deep
// copy of the account set and merges it back only when the callback succeeds,
// mirroring transactional rollback. A single mutex stands in for row locks,
// which keeps concurrent test transfers serializable; the lock-ordering rule
// is asserted through the recorded LockAccount call sequence instead.
type fakeStore struct {
	mu        sync.Mutex
	accounts  map[uuid.UUID]*domain.Account
	transfers []domain.Transfer
	audits    []domain.AuditLog

	lockCalls []uuid.UUID

	// deltaErrFor injects a failure when ApplyBalanceDelta touches the given
	// account, simulating a storage fault mid-unit.
	deltaErrFor uuid.UUID
	deltaErr    error
}

func newFakeStore(accounts ...*domain.Account) *fakeStore {
	f := &fakeStore{accounts: make(map[uuid.UUID]*domain.Account)}
	for _, acc := range accounts {
		f.accounts[acc.ID] = acc
	}
	return f
}

func (f *fakeStore) WithinTx(ctx context.Context, fn func(tx store.LedgerTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tx := &fakeTx{store: f, accounts: make(map[uuid.UUID]*domain.Account, len(f.accounts))}
	for id, acc := range f.accounts {
		copied := *acc
		tx.accounts[id] = &copied
	}

	if err := fn(tx); err != nil {
		return err
	}

	f.accounts = tx.accounts
	f.transfers = append(f.transfers, tx.transfers...)
	f.audits = append(f.audits, tx.audits...)
	return nil
}

func (f *fakeStore) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	copied := *acc
	return &copied, nil
}

func (f *fakeStore) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, acc := range f.accounts {
		if acc.Email == email {
			copied := *acc
			return &copied, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (f *fakeStore) GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.transfers {
		if t.ID == id {
			copied := t
			return &copied, nil
		}
	}
	return nil, domain.ErrTransferNotFound
}

func (f *fakeStore) ListTransfersForAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Transfer
	for _, t := range f.transfers {
		if t.SenderID == accountID || t.RecipientID == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAuditLogsForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]domain.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AuditLog
	for _, e := range f.audits {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeTx struct {
	store     *fakeStore
	accounts  map[uuid.UUID]*domain.Account
	transfers []domain.Transfer
	audits    []domain.AuditLog
}

func (t *fakeTx) LockAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	t.store.lockCalls = append(t.store.lockCalls, id)
	acc, ok := t.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return acc, nil
}

func (t *fakeTx) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	for _, acc := range t.accounts {
		if acc.Email == email {
			return acc, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (t *fakeTx) CreateAccount(ctx context.Context, email, fullName string) (*domain.Account, error) {
	for _, acc := range t.accounts {
		if acc.Email == email {
			return nil, domain.ErrEmailTaken
		}
	}
	now := time.Now().UTC()
	acc := &domain.Account{
		ID:        uuid.New(),
		Email:     email,
		FullName:  fullName,
		Balance:   decimal.Zero,
		Status:    domain.AccountActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.accounts[acc.ID] = acc
	return acc, nil
}

func (t *fakeTx) ApplyBalanceDelta(ctx context.Context, account *domain.Account, delta decimal.Decimal) (decimal.Decimal, error) {
	if t.store.deltaErr != nil && account.ID == t.store.deltaErrFor {
		return decimal.Decimal{}, t.store.deltaErr
	}
	next := account.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Decimal{}, domain.ErrInsufficientFunds
	}
	account.Balance = next
	account.UpdatedAt = time.Now().UTC()
	return next, nil
}

func (t *fakeTx) CreateTransfer(ctx context.Context, transfer *domain.Transfer) error {
	transfer.CreatedAt = time.Now().UTC()
	t.transfers = append(t.transfers, *transfer)
	return nil
}

func (t *fakeTx) CreateAuditLog(ctx context.Context, entry *domain.AuditLog) error {
	entry.CreatedAt = time.Now().UTC()
	t.audits = append(t.audits, *entry)
	return nil
}

// capturePublisher records routing keys of published events.
type capturePublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *capturePublisher) Publish(ctx context.Context, routingKey string, body any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *capturePublisher) Close() {}

func (p *capturePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func newTestService(repo store.Repository, pub *capturePublisher) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(repo, pub, logger)
}

func activeAccount(balance string) *domain.Account {
	now := time.Now().UTC()
	return &domain.Account{
		ID:        uuid.New(),
		Email:     uuid.NewString() + "@test.local",
		FullName:  "Test Account",
		Balance:   decimal.RequireFromString(balance),
		Status:    domain.AccountActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

var errStorageBoom = errors.New("storage blew up")
