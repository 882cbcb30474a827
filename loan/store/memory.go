// Package store provides loan.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/loan-engine/finance"
	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/schedule"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps everything in maps guarded by one RWMutex. Every read
// returns copies, so callers never observe a half-applied write.
type Memory struct {
	mu         sync.RWMutex
	loans      map[string]loan.Loan
	order      []string
	schedules  map[string][]schedule.Installment
	repayments map[string][]loan.Repayment
}

var _ loan.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		loans:      make(map[string]loan.Loan),
		schedules:  make(map[string][]schedule.Installment),
		repayments: make(map[string][]loan.Repayment),
	}
}

func (m *Memory) CreateLoan(_ context.Context, l loan.Loan, rows []schedule.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.loans[l.ID]; ok {
		return fmt.Errorf("%w: loan %s already exists", finance.ErrConcurrentModification, l.ID)
	}
	m.loans[l.ID] = l
	m.order = append(m.order, l.ID)
	m.schedules[l.ID] = sorted(rows)
	return nil
}

func (m *Memory) GetLoan(_ context.Context, id string) (*loan.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.loans[id]
	if !ok {
		return nil, finance.ErrLoanNotFound
	}
	return &l, nil
}

func (m *Memory) ListLoans(_ context.Context) ([]loan.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]loan.Loan, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.loans[id])
	}
	return out, nil
}

func (m *Memory) GetSchedule(_ context.Context, loanID string) ([]schedule.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.loans[loanID]; !ok {
		return nil, finance.ErrLoanNotFound
	}
	return schedule.Clone(m.schedules[loanID]), nil
}

func (m *Memory) ListRepayments(_ context.Context, loanID string) ([]loan.Repayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.loans[loanID]; !ok {
		return nil, finance.ErrLoanNotFound
	}
	out := make([]loan.Repayment, len(m.repayments[loanID]))
	copy(out, m.repayments[loanID])
	return out, nil
}

func (m *Memory) ReplaceTail(_ context.Context, r loan.TailReplacement) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.casLocked(r.LoanID, r.ExpectedRevision)
	if err != nil {
		return 0, err
	}

	var kept []schedule.Installment
	for _, inst := range m.schedules[r.LoanID] {
		if inst.No <= r.KeepCount {
			kept = append(kept, inst)
		}
	}
	m.schedules[r.LoanID] = sorted(append(kept, r.Tail...))
	m.repayments[r.LoanID] = append(m.repayments[r.LoanID], r.Repayment)

	return m.bumpLocked(l, r.Status), nil
}

func (m *Memory) MarkPaid(_ context.Context, u loan.PaymentUpdate) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.casLocked(u.LoanID, u.ExpectedRevision)
	if err != nil {
		return 0, err
	}

	rows := m.schedules[u.LoanID]
	found := false
	for i := range rows {
		if rows[i].No == u.No {
			rows[i].Status = schedule.StatusPaid
			rows[i].PaidOn = u.PaidOn
			found = true
			break
		}
	}
	if !found {
		return 0, finance.ErrInstallmentNotFound
	}

	return m.bumpLocked(l, u.Status), nil
}

func (m *Memory) MarkOverdue(_ context.Context, today finance.Date) ([]schedule.Installment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var marked []schedule.Installment
	for _, id := range m.order {
		rows := m.schedules[id]
		for i := range rows {
			if rows[i].Status == schedule.StatusPending && rows[i].DueDate.Before(today) {
				rows[i].Status = schedule.StatusOverdue
				marked = append(marked, rows[i])
			}
		}
	}
	return marked, nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loans = make(map[string]loan.Loan)
	m.order = nil
	m.schedules = make(map[string][]schedule.Installment)
	m.repayments = make(map[string][]loan.Repayment)
	return nil
}

// casLocked returns the loan when its revision is expected.
func (m *Memory) casLocked(id string, expected int64) (loan.Loan, error) {
	l, ok := m.loans[id]
	if !ok {
		return loan.Loan{}, finance.ErrLoanNotFound
	}
	if l.Revision != expected {
		return loan.Loan{}, &finance.RevisionConflictError{LoanID: id, Expected: expected, Actual: l.Revision}
	}
	return l, nil
}

func (m *Memory) bumpLocked(l loan.Loan, status loan.Status) int64 {
	l.Revision++
	if status != "" {
		l.Status = status
	}
	l.UpdatedAt = time.Now().UTC()
	m.loans[l.ID] = l
	return l.Revision
}

func sorted(rows []schedule.Installment) []schedule.Installment {
	out := schedule.Clone(rows)
	sort.Slice(out, func(i, j int) bool { return out[i].No < out[j].No })
	return out
}
