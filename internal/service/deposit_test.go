package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sidvermani/fundflow/internal/domain"
	"github.com/sidvermani/fundflow/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositCreatesUnknownAccount(t *testing.T) {
	fs := newFakeStore()
	pub := &capturePublisher{}
	svc := newTestService(fs, pub)

	actor := uuid.New()
	account, err := svc.Deposit(context.Background(), "new@ledger.local", "New User",
		decimal.RequireFromString("800"), &actor)
	require.NoError(t, err)

	assert.Equal(t, "new@ledger.local", account.Email)
	assert.Equal(t, "New User", account.FullName)
	assert.Equal(t, domain.AccountActive, account.Status)
	assert.Equal(t, "800.0000", account.Balance.StringFixed(domain.AmountScale))

	stored := fs.accounts[account.ID]
	require.NotNil(t, stored)
	assert.True(t, stored.Balance.Equal(decimal.RequireFromString("800")))

	require.Len(t, fs.audits, 1)
	audit := fs.audits[0]
	assert.Equal(t, domain.ActionDeposit, audit.Action)
	assert.Equal(t, domain.EntityAccount, audit.EntityType)
	assert.Equal(t, account.ID, audit.EntityID)
	require.NotNil(t, audit.UserID)
	assert.Equal(t, actor, *audit.UserID)

	var changes struct {
		Account domain.BalanceChange `json:"account"`
	}
	require.NoError(t, json.Unmarshal(audit.Changes, &changes))
	assert.True(t, changes.Account.Before.Equal(decimal.Zero))
	assert.True(t, changes.Account.After.Equal(decimal.RequireFromString("800")))

	assert.Equal(t, []string{events.DepositCompletedKey}, pub.published())
}

func TestDepositCreditsExistingAccount(t *testing.T) {
	existing := activeAccount("50")
	fs := newFakeStore(existing)
	svc := newTestService(fs, &capturePublisher{})

	account, err := svc.Deposit(context.Background(), existing.Email, "Different Name",
		decimal.RequireFromString("25"), nil)
	require.NoError(t, err)

	assert.Equal(t, existing.ID, account.ID)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("75")))
	// full_name only applies at creation; an existing name is never rewritten.
	assert.Equal(t, existing.FullName, account.FullName)
	assert.Len(t, fs.accounts, 1)
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, &capturePublisher{})

	_, err := svc.Deposit(context.Background(), "a@b.c", "A", decimal.Zero, nil)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.Empty(t, fs.accounts)
	assert.Empty(t, fs.audits)
}

func TestDepositRejectsInactiveAccount(t *testing.T) {
	existing := activeAccount("50")
	existing.Status = domain.AccountClosed
	fs := newFakeStore(existing)
	pub := &capturePublisher{}
	svc := newTestService(fs, pub)

	_, err := svc.Deposit(context.Background(), existing.Email, "",
		decimal.RequireFromString("25"), nil)
	require.ErrorIs(t, err, domain.ErrAccountInactive)

	assert.True(t, fs.accounts[existing.ID].Balance.Equal(decimal.RequireFromString("50")))
	assert.Empty(t, fs.audits)
	assert.Empty(t, pub.published())
}

func TestDepositRollsBackOnStorageFailure(t *testing.T) {
	existing := activeAccount("50")
	fs := newFakeStore(existing)
	fs.deltaErrFor = existing.ID
	fs.deltaErr = errStorageBoom
	svc := newTestService(fs, &capturePublisher{})

	_, err := svc.Deposit(context.Background(), existing.Email, "",
		decimal.RequireFromString("25"), nil)
	require.ErrorIs(t, err, errStorageBoom)

	assert.True(t, fs.accounts[existing.ID].Balance.Equal(decimal.RequireFromString("50")))
	assert.Empty(t, fs.audits)
}
