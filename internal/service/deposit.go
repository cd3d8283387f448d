package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sidvermani/fundflow/internal/domain"
	"github.com/sidvermani/fundflow/internal/events"
	"github.com/sidvermani/fundflow/internal/store"
)

// Deposit credits an account looked up by email, creating it first when the
// email is unknown (find-or-create, initial balance zero). fullName is only
// used at creation; a deposit never rewrites an existing account's name.
// Returns the account with its post-commit balance.
func (s *Service) Deposit(ctx context.Context, email, fullName string, amount decimal.Decimal, actor *uuid.UUID) (*domain.Account, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	var account *domain.Account
	err := s.repo.WithinTx(ctx, func(tx store.LedgerTx) error {
		existing, err := tx.FindAccountByEmail(ctx, email)
		switch {
		case err == nil:
			// Re-read under lock; the snapshot read above is not protected.
			account, err = tx.LockAccount(ctx, existing.ID)
			if err != nil {
				return err
			}
		case errors.Is(err, domain.ErrAccountNotFound):
			account, err = tx.CreateAccount(ctx, email, fullName)
			if err != nil {
				return err
			}
		default:
			return err
		}

		if err := requireActive(account); err != nil {
			return err
		}

		before := account.Balance
		if _, err := tx.ApplyBalanceDelta(ctx, account, amount); err != nil {
			return err
		}

		changes, err := json.Marshal(struct {
			Account domain.BalanceChange `json:"account"`
		}{
			Account: domain.BalanceChange{AccountID: account.ID, Before: before, After: account.Balance},
		})
		if err != nil {
			return fmt.Errorf("audit snapshot marshal failed: %w", err)
		}

		return tx.CreateAuditLog(ctx, &domain.AuditLog{
			ID:         uuid.New(),
			UserID:     actor,
			Action:     domain.ActionDeposit,
			EntityType: domain.EntityAccount,
			EntityID:   account.ID,
			Changes:    changes,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deposit committed",
		"account_id", account.ID,
		"amount", amount.String(),
		"new_balance", account.Balance.String())

	if err := s.publisher.Publish(ctx, events.DepositCompletedKey, events.DepositCompleted{
		AccountID:  account.ID,
		Amount:     amount,
		NewBalance: account.Balance,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("deposit event publish failed", "account_id", account.ID, "error", err)
	}

	return account, nil
}
