package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sidvermani/fundflow/internal/domain"
)

// Repository is the durable account/transfer/audit store. All reads outside a
// transaction are plain snapshot reads; every mutation path goes through
// WithinTx so it commits or rolls back as one unit.
type Repository interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	ListTransfersForAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Transfer, error)
	ListAuditLogsForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]domain.AuditLog, error)

	// WithinTx runs fn inside a single database transaction. If fn returns an
	// error the transaction is rolled back and the error is returned as-is;
	// otherwise the transaction is committed. Nothing is retried.
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx is the set of operations available inside one atomic unit.
type LedgerTx interface {
	// LockAccount acquires an exclusive row lock on the account, held until
	// the enclosing transaction ends. Every balance mutation must lock first.
	LockAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)

	FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error)

	// CreateAccount inserts an active account with a zero balance. Returns
	// domain.ErrEmailTaken when the email is already registered.
	CreateAccount(ctx context.Context, email, fullName string) (*domain.Account, error)

	// ApplyBalanceDelta adds a signed delta to a locked account's balance and
	// refreshes updated_at. A delta that would drive the balance negative
	// returns domain.ErrInsufficientFunds with no write performed. This is the
	// single choke point for the non-negativity invariant; callers never
	// compute balances themselves.
	ApplyBalanceDelta(ctx context.Context, account *domain.Account, delta decimal.Decimal) (decimal.Decimal, error)

	CreateTransfer(ctx context.Context, t *domain.Transfer) error
	CreateAuditLog(ctx context.Context, entry *domain.AuditLog) error
}
