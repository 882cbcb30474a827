package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/loan/store"
	"github.com/warp/loan-engine/loan/storetest"
)

func TestMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) loan.Store { return store.NewMemory() })
}

func TestMemory_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	l, rows := storetest.Fixture(t, "loan-1")
	require.NoError(t, m.CreateLoan(ctx, l, rows))

	got, err := m.GetSchedule(ctx, l.ID)
	require.NoError(t, err)
	got[0].PrincipalDue = 0

	again, err := m.GetSchedule(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, rows[0].PrincipalDue, again[0].PrincipalDue)
}
