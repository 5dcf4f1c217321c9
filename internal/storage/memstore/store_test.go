package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamification_service/internal/customer"
	"gamification_service/internal/ledger"
	"gamification_service/internal/storage"
)

func TestFailedTransactionLeavesNoTrace(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := &customer.Customer{MerchantID: "m1"}
	require.NoError(t, s.Customers().Create(ctx, c))

	boom := errors.New("boom")
	err := s.WithinTransaction(ctx, func(ctx context.Context) error {
		got, err := s.Customers().GetForUpdate(ctx, c.ID)
		require.NoError(t, err)
		got.TotalPoints = 500
		require.NoError(t, s.Customers().Save(ctx, got))
		require.NoError(t, s.Ledger().Append(ctx, &ledger.Entry{CustomerID: c.ID, PointsChange: 500, ReferenceID: "r1", TransactionType: ledger.TypeEarned}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Customers().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.TotalPoints)
	assert.Equal(t, 1, got.Version)
	sum, err := s.Ledger().Sum(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestNestedTransactionJoinsOuter(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := &customer.Customer{MerchantID: "m1"}
	require.NoError(t, s.Customers().Create(ctx, c))

	err := s.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.WithinTransaction(ctx, func(ctx context.Context) error {
			return s.Ledger().Append(ctx, &ledger.Entry{CustomerID: c.ID, PointsChange: 7, ReferenceID: "r1", TransactionType: ledger.TypeEarned})
		})
	})
	require.NoError(t, err)

	sum, err := s.Ledger().Sum(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), sum)
}

func TestSaveWithStaleVersion(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := &customer.Customer{MerchantID: "m1"}
	require.NoError(t, s.Customers().Create(ctx, c))

	a, err := s.Customers().Get(ctx, c.ID)
	require.NoError(t, err)
	b, err := s.Customers().Get(ctx, c.ID)
	require.NoError(t, err)

	require.NoError(t, s.Customers().Save(ctx, a))
	assert.Equal(t, 2, a.Version)
	assert.ErrorIs(t, s.Customers().Save(ctx, b), storage.ErrOptimisticLock)
}

func TestDuplicateReferenceIsAConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	e := ledger.Entry{CustomerID: "c1", PointsChange: 5, ReferenceID: "sess-1", TransactionType: ledger.TypeEarned}
	first := e
	require.NoError(t, s.Ledger().Append(ctx, &first))
	second := e
	assert.ErrorIs(t, s.Ledger().Append(ctx, &second), storage.ErrOptimisticLock)

	other := e
	other.TransactionType = ledger.TypeBonus
	assert.NoError(t, s.Ledger().Append(ctx, &other))
}

func TestDeletedCustomerIsNotFound(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := &customer.Customer{MerchantID: "m1"}
	require.NoError(t, s.Customers().Create(ctx, c))
	require.NoError(t, s.Customers().Delete(ctx, c.ID))

	_, err := s.Customers().Get(ctx, c.ID)
	assert.ErrorIs(t, err, customer.ErrCustomerNotFound)
	assert.ErrorIs(t, s.Customers().Delete(ctx, c.ID), customer.ErrCustomerNotFound)
}
