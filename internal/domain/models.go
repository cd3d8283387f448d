package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus gates which accounts may participate in money movement.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
	AccountClosed    AccountStatus = "closed"
)

// Account holds a single balance. The balance is only ever mutated inside a
// database transaction that holds the account's row lock.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	Email     string          `json:"email"`
	FullName  string          `json:"full_name"`
	Balance   decimal.Decimal `json:"balance"`
	Status    AccountStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Transfer is the immutable record of money moved between two accounts.
// It is inserted in the same transaction as the balance changes it describes
// and is never updated or deleted.
type Transfer struct {
	ID          uuid.UUID       `json:"id"`
	SenderID    uuid.UUID       `json:"sender_id"`
	RecipientID uuid.UUID       `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Audit actions.
const (
	ActionTransfer = "transfer"
	ActionDeposit  = "deposit"
)

// Audit entity types.
const (
	EntityTransfer = "transfer"
	EntityAccount  = "account"
)

// AuditLog is an append-only change record. UserID is the acting user and is
// nil for system-initiated mutations. Changes carries a before/after snapshot
// of every balance the mutation touched.
type AuditLog struct {
	ID         uuid.UUID       `json:"id"`
	UserID     *uuid.UUID      `json:"user_id,omitempty"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id"`
	Changes    json.RawMessage `json:"changes"`
	CreatedAt  time.Time       `json:"created_at"`
}

// BalanceChange is one account's slice of an audit snapshot.
type BalanceChange struct {
	AccountID uuid.UUID       `json:"account_id"`
	Before    decimal.Decimal `json:"before"`
	After     decimal.Decimal `json:"after"`
}
