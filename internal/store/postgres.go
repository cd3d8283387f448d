package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sidvermani/fundflow/internal/domain"
)

const uniqueViolation = "23505"

const accountColumns = "id, email, full_name, balance, status, created_at, updated_at"

// NewPool opens and pings a pgx connection pool.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

// PostgresRepository implements Repository on top of a pgx pool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return scanAccount(r.db.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1", id))
}

func (r *PostgresRepository) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return scanAccount(r.db.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email = $1", email))
}

func (r *PostgresRepository) GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	var t domain.Transfer
	err := r.db.QueryRow(ctx,
		"SELECT id, sender_id, recipient_id, amount, description, created_at FROM transfers WHERE id = $1",
		id).Scan(&t.ID, &t.SenderID, &t.RecipientID, &t.Amount, &t.Description, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransferNotFound
		}
		return nil, fmt.Errorf("transfer query failed: %w", err)
	}
	return &t, nil
}

func (r *PostgresRepository) ListTransfersForAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Transfer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, sender_id, recipient_id, amount, description, created_at
		 FROM transfers
		 WHERE sender_id = $1 OR recipient_id = $1
		 ORDER BY created_at DESC`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("transfer list query failed: %w", err)
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		var t domain.Transfer
		if err := rows.Scan(&t.ID, &t.SenderID, &t.RecipientID, &t.Amount, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("transfer scan failed: %w", err)
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

func (r *PostgresRepository) ListAuditLogsForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]domain.AuditLog, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, action, entity_type, entity_id, changes, created_at
		 FROM audit_logs
		 WHERE entity_type = $1 AND entity_id = $2
		 ORDER BY created_at DESC`,
		entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("audit log query failed: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditLog
	for rows.Next() {
		var e domain.AuditLog
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID, &e.Changes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit log scan failed: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *PostgresRepository) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgxLedgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// pgxLedgerTx implements LedgerTx over an open pgx transaction.
type pgxLedgerTx struct {
	tx pgx.Tx
}

func (l *pgxLedgerTx) LockAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return scanAccount(l.tx.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1 FOR UPDATE", id))
}

func (l *pgxLedgerTx) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return scanAccount(l.tx.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email = $1", email))
}

func (l *pgxLedgerTx) CreateAccount(ctx context.Context, email, fullName string) (*domain.Account, error) {
	acc := &domain.Account{
		ID:       uuid.New(),
		Email:    email,
		FullName: fullName,
		Balance:  decimal.Zero,
		Status:   domain.AccountActive,
	}
	err := l.tx.QueryRow(ctx,
		`INSERT INTO accounts (id, email, full_name, balance, status)
		 VALUES ($1, $2, $3, 0, $4)
		 RETURNING created_at, updated_at`,
		acc.ID, acc.Email, acc.FullName, acc.Status,
	).Scan(&acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("account insert failed: %w", err)
	}
	return acc, nil
}

func (l *pgxLedgerTx) ApplyBalanceDelta(ctx context.Context, account *domain.Account, delta decimal.Decimal) (decimal.Decimal, error) {
	next := account.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Decimal{}, domain.ErrInsufficientFunds
	}

	err := l.tx.QueryRow(ctx,
		`UPDATE accounts SET balance = balance + $1, updated_at = now()
		 WHERE id = $2
		 RETURNING balance, updated_at`,
		delta, account.ID,
	).Scan(&account.Balance, &account.UpdatedAt)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("balance update failed: %w", err)
	}
	return account.Balance, nil
}

func (l *pgxLedgerTx) CreateTransfer(ctx context.Context, t *domain.Transfer) error {
	err := l.tx.QueryRow(ctx,
		`INSERT INTO transfers (id, sender_id, recipient_id, amount, description)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		t.ID, t.SenderID, t.RecipientID, t.Amount, t.Description,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("transfer insert failed: %w", err)
	}
	return nil
}

func (l *pgxLedgerTx) CreateAuditLog(ctx context.Context, entry *domain.AuditLog) error {
	err := l.tx.QueryRow(ctx,
		`INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, changes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		entry.ID, entry.UserID, entry.Action, entry.EntityType, entry.EntityID, entry.Changes,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit log insert failed: %w", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var acc domain.Account
	err := row.Scan(&acc.ID, &acc.Email, &acc.FullName, &acc.Balance, &acc.Status, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("account query failed: %w", err)
	}
	return &acc, nil
}
