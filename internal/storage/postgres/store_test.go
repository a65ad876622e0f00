package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-autotrader/internal/domain"
	"solana-autotrader/internal/storage"
)

func TestUserStore_RoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewUserStore(pool)
	ctx := context.Background()

	u := &domain.User{
		UserID: "12345",
		Wallet: "WalletPub",
		Active: true,
		Strategy: domain.StrategyConfig{
			MinHolders:    ptr(100.0),
			Enabled:       true,
			BuyAmount:     0.05,
			ProfitTarget1: 25,
			ProfitTarget2: ptr(60.0),
		},
		CreatedAt: 1000,
		UpdatedAt: 1000,
	}
	require.NoError(t, store.Upsert(ctx, u))

	got, err := store.GetByID(ctx, "12345")
	require.NoError(t, err)
	assert.Equal(t, "WalletPub", got.Wallet)
	require.NotNil(t, got.Strategy.MinHolders)
	assert.Equal(t, 100.0, *got.Strategy.MinHolders)
	require.NotNil(t, got.Strategy.ProfitTarget2)
	assert.Equal(t, 60.0, *got.Strategy.ProfitTarget2)
	assert.Nil(t, got.Signer)

	u.Wallet = "NewPub"
	u.CreatedAt = 5000
	u.UpdatedAt = 5000
	require.NoError(t, store.Upsert(ctx, u))
	got, err = store.GetByID(ctx, "12345")
	require.NoError(t, err)
	assert.Equal(t, "NewPub", got.Wallet)
	assert.Equal(t, int64(1000), got.CreatedAt, "created_at kept on conflict")

	require.NoError(t, store.Upsert(ctx, &domain.User{UserID: "999", Active: false}))
	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "12345", active[0].UserID)

	require.NoError(t, store.SetActive(ctx, "12345", false))
	active, err = store.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, store.SetActive(ctx, "missing", true), storage.ErrNotFound)
	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPositionStore_Lifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	p := &domain.Position{
		PositionID: "pos-1",
		UserID:     "u1",
		Mint:       "MintA",
		EntryPrice: 0.002,
		BaseAmount: 1_000_000,
		BuyAmount:  0.01,
		Source:     "jupiter",
		TxID:       "sig1",
		State:      domain.StateOpen,
		OpenedAt:   100,
		UpdatedAt:  100,
	}
	require.NoError(t, store.Insert(ctx, p))

	// Second live position on the same mint is rejected by the partial index.
	dup := *p
	dup.PositionID = "pos-2"
	assert.ErrorIs(t, store.Insert(ctx, &dup), storage.ErrDuplicateKey)

	open, err := store.ListOpen(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, open, 1)

	p.ExitedStage1 = true
	p.Stage1Sold = 500_000
	p.State = domain.StatePartial1
	p.UpdatedAt = 200
	require.NoError(t, store.Update(ctx, p))

	got, err := store.GetByID(ctx, "pos-1")
	require.NoError(t, err)
	assert.True(t, got.ExitedStage1)
	assert.Equal(t, 500_000.0, got.Stage1Sold)
	assert.Equal(t, domain.StatePartial1, got.State)
	assert.Nil(t, got.ClosedAt)

	p.Stopped = true
	p.StopSold = 500_000
	p.State = domain.StateStopped
	p.ClosedAt = ptr(int64(300))
	require.NoError(t, store.Update(ctx, p))

	open, err = store.ListOpen(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, open)

	// Mint is free again.
	require.NoError(t, store.Insert(ctx, &dup))

	all, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.NotNil(t, all[0].ClosedAt)
	assert.Equal(t, int64(300), *all[0].ClosedAt)

	assert.ErrorIs(t, store.Update(ctx, &domain.Position{PositionID: "nope"}), storage.ErrNotFound)
	_, err = store.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
