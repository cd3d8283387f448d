package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sidvermani/fundflow/internal/domain"
	"github.com/sidvermani/fundflow/internal/events"
	"github.com/sidvermani/fundflow/internal/store"
)

// Service orchestrates all money movement. Every mutation runs in a single
// database transaction; the audit entry is written inside the same
// transaction, events are published only after commit.
type Service struct {
	repo      store.Repository
	publisher events.Publisher
	logger    *slog.Logger
}

func New(repo store.Repository, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = &events.NopPublisher{Logger: logger}
	}
	return &Service{repo: repo, publisher: publisher, logger: logger}
}

// Transfer debits sender and credits recipient as one atomic unit and returns
// the durable transfer record. Validation failures are returned before any
// row lock is taken; any failure after locking rolls the whole unit back, so
// a failed transfer leaves no balance change, no transfer record and no audit
// entry. actor is the authenticated user recorded in the audit trail, nil for
// system-initiated movements.
func (s *Service) Transfer(ctx context.Context, senderID, recipientID uuid.UUID, amount decimal.Decimal, description string, actor *uuid.UUID) (*domain.Transfer, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if senderID == recipientID {
		return nil, domain.ErrSameAccount
	}

	transfer := &domain.Transfer{
		ID:          uuid.New(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Amount:      amount,
		Description: description,
	}

	err := s.repo.WithinTx(ctx, func(tx store.LedgerTx) error {
		// Lock both rows in ascending id order regardless of who sends and
		// who receives. Two opposing transfers over the same pair then always
		// contend on the same first lock instead of deadlocking.
		firstID, secondID := senderID, recipientID
		if bytes.Compare(secondID[:], firstID[:]) < 0 {
			firstID, secondID = secondID, firstID
		}

		first, err := tx.LockAccount(ctx, firstID)
		if err != nil {
			return err
		}
		second, err := tx.LockAccount(ctx, secondID)
		if err != nil {
			return err
		}

		sender, recipient := first, second
		if sender.ID != senderID {
			sender, recipient = second, first
		}

		if err := requireActive(sender); err != nil {
			return err
		}
		if err := requireActive(recipient); err != nil {
			return err
		}

		senderBefore := sender.Balance
		recipientBefore := recipient.Balance

		if _, err := tx.ApplyBalanceDelta(ctx, sender, amount.Neg()); err != nil {
			return err
		}
		if _, err := tx.ApplyBalanceDelta(ctx, recipient, amount); err != nil {
			return err
		}

		if err := tx.CreateTransfer(ctx, transfer); err != nil {
			return err
		}

		changes, err := json.Marshal(struct {
			Sender    domain.BalanceChange `json:"sender"`
			Recipient domain.BalanceChange `json:"recipient"`
		}{
			Sender:    domain.BalanceChange{AccountID: sender.ID, Before: senderBefore, After: sender.Balance},
			Recipient: domain.BalanceChange{AccountID: recipient.ID, Before: recipientBefore, After: recipient.Balance},
		})
		if err != nil {
			return fmt.Errorf("audit snapshot marshal failed: %w", err)
		}

		return tx.CreateAuditLog(ctx, &domain.AuditLog{
			ID:         uuid.New(),
			UserID:     actor,
			Action:     domain.ActionTransfer,
			EntityType: domain.EntityTransfer,
			EntityID:   transfer.ID,
			Changes:    changes,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transfer committed",
		"transfer_id", transfer.ID,
		"sender_id", senderID,
		"recipient_id", recipientID,
		"amount", amount.String())

	if err := s.publisher.Publish(ctx, events.TransferCompletedKey, events.TransferCompleted{
		TransferID:  transfer.ID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Amount:      amount,
		OccurredAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("transfer event publish failed", "transfer_id", transfer.ID, "error", err)
	}

	return transfer, nil
}

// GetTransfer returns a transfer only if the requesting account participated
// in it, as sender or recipient.
func (s *Service) GetTransfer(ctx context.Context, id, requesterID uuid.UUID) (*domain.Transfer, error) {
	t, err := s.repo.GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.SenderID != requesterID && t.RecipientID != requesterID {
		return nil, domain.ErrTransferNotFound
	}
	return t, nil
}

// ListTransfers returns the account's full transfer history, newest first.
func (s *Service) ListTransfers(ctx context.Context, accountID uuid.UUID) ([]domain.Transfer, error) {
	return s.repo.ListTransfersForAccount(ctx, accountID)
}

// GetAccount returns a point-in-time account snapshot.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.repo.GetAccount(ctx, id)
}

func requireActive(acc *domain.Account) error {
	if acc.Status != domain.AccountActive {
		return fmt.Errorf("%w: account %s is %s", domain.ErrAccountInactive, acc.ID, acc.Status)
	}
	return nil
}
