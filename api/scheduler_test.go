package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-engine/events"
	"github.com/warp/loan-engine/finance"
	"github.com/warp/loan-engine/schedule"
)

func TestOverdueScheduler_RunOnce(t *testing.T) {
	// GIVEN: A loan with two installments past due on 2025-03-20
	f := newAPIFixture(t)
	f.createCar(t)
	f.today = finance.NewDate(2025, time.March, 20)

	sc := NewOverdueScheduler(f.handler.Service, time.Hour, nil)

	// WHEN: The scheduler runs twice
	first := sc.RunOnce(context.Background())
	second := sc.RunOnce(context.Background())

	// THEN: Only the first run changes anything
	assert.Equal(t, 2, first)
	assert.Equal(t, 0, second)

	rows, err := f.store.GetSchedule(context.Background(), "car")
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusOverdue, rows[0].Status)
	assert.Equal(t, schedule.StatusOverdue, rows[1].Status)
	assert.Equal(t, schedule.StatusPending, rows[2].Status)

	// AND: The revision is unchanged
	l, err := f.store.GetLoan(context.Background(), "car")
	require.NoError(t, err)
	assert.Equal(t, int64(1), l.Revision)
	assert.Contains(t, f.recorder.Types(), events.TypeInstallmentsOverdue)
}

func TestOverdueScheduler_StartRunsImmediately(t *testing.T) {
	f := newAPIFixture(t)
	f.createCar(t)
	f.today = finance.NewDate(2025, time.February, 16)

	sc := NewOverdueScheduler(f.handler.Service, time.Hour, nil)
	require.True(t, sc.Enabled)

	sc.Start()
	sc.Start()
	sc.Stop()

	rows, err := f.store.GetSchedule(context.Background(), "car")
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusOverdue, rows[0].Status)
	assert.Equal(t, schedule.StatusPending, rows[1].Status)

	// THEN: It can be started again after a stop
	sc.Start()
	sc.Stop()
}

func TestOverdueScheduler_Disabled(t *testing.T) {
	f := newAPIFixture(t)

	sc := NewOverdueScheduler(f.handler.Service, 0, nil)
	assert.False(t, sc.Enabled)

	sc.Start()
	sc.Stop()
	assert.Nil(t, sc.ticker)
}
