package usecase_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
)

func TestPlaceBet_DebitsOnCompletion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedUser(t, "u1", 100)

	bet, err := h.gameplay.PlaceBet(ctx, usecase.GameplayInput{UserID: "u1", Amount: amt(30), GameID: "crash"})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusCompleted, bet.Status)
	assert.Equal(t, "crash", bet.Metadata[domain.MetaGameID])
	assert.True(t, h.balance(t, "u1").Equal(amt(70)))

	win, err := h.gameplay.CreditWin(ctx, usecase.GameplayInput{UserID: "u1", Amount: amt(60), BetEntryID: bet.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusCompleted, win.Status)
	assert.True(t, h.balance(t, "u1").Equal(amt(130)))
}

func TestPlaceBet_InsufficientFundsFailsTheEntry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedUser(t, "u1", 100)

	bet, err := h.gameplay.PlaceBet(ctx, usecase.GameplayInput{UserID: "u1", Amount: amt(150)})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	require.NotNil(t, bet)
	assert.Equal(t, domain.EntryStatusFailed, bet.Status)
	assert.Equal(t, "insufficient_funds", bet.Metadata[domain.MetaFailureReason])

	assert.Equal(t, domain.EntryStatusFailed, h.entry(t, bet.ID).Status)
	assert.True(t, h.balance(t, "u1").Equal(amt(100)))
}

func TestPlaceBet_ConcurrentStakesNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedUser(t, "u1", 100)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bet, err := h.gameplay.PlaceBet(ctx, usecase.GameplayInput{UserID: "u1", Amount: amt(30)})
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if bet.Status == domain.EntryStatusCompleted {
				completed++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, completed)
	assert.True(t, h.balance(t, "u1").Equal(amt(10)))
}

func TestCreditWin_RequiresCompletedBet(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedUser(t, "u1", 10)

	bet, err := h.gameplay.PlaceBet(ctx, usecase.GameplayInput{UserID: "u1", Amount: amt(20)})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = h.gameplay.CreditWin(ctx, usecase.GameplayInput{UserID: "u1", Amount: amt(40), BetEntryID: bet.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.True(t, h.balance(t, "u1").Equal(amt(10)))
}

func TestCreditBonus(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "u1", 0)

	bonus, err := h.gameplay.CreditBonus(context.Background(), usecase.GameplayInput{UserID: "u1", Amount: amt(15)})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryTypeBonus, bonus.Type)
	assert.True(t, h.balance(t, "u1").Equal(amt(15)))
}
