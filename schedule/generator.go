package schedule

// Generate validates terms and returns the loan's full schedule. It is pure:
// identical terms always yield an identical schedule.
func Generate(t Terms) ([]Installment, error) {
	p, err := t.Plan()
	if err != nil {
		return nil, err
	}
	return Amortize(p)
}

// Amortize runs the plan's method period by period.
//
// The method supplies raw figures; the rules shared by every method live
// here. A principal is never negative and never above the balance. The final
// installment takes whatever balance is left, so the run always ends at
// exactly zero and its principals sum to p.Principal.
func Amortize(p Plan) ([]Installment, error) {
	m, err := Lookup(p.Type)
	if err != nil {
		return nil, err
	}
	if p.Periods <= 0 || !p.Principal.IsPositive() {
		return []Installment{}, nil
	}

	firstNo := p.FirstNo
	if firstNo <= 0 {
		firstNo = 1
	}

	stepper := m.Begin(p)
	rows := make([]Installment, 0, p.Periods)
	balance := p.Principal

	for i := 1; i <= p.Periods; i++ {
		principal, interest := stepper.Next(i, balance)
		if principal.IsNegative() {
			principal = 0
		}

		final := i == p.Periods
		if principal >= balance {
			principal = balance
			if p.StopWhenPaid {
				final = true
			}
		}
		// Residual correction: the last installment closes the balance.
		if final {
			principal = balance
		}

		balance = balance.Sub(principal)
		no := firstNo + i - 1
		rows = append(rows, Installment{
			No:           no,
			DueDate:      p.Start.AddMonths(no),
			PrincipalDue: principal,
			InterestDue:  interest,
			FeesDue:      p.Charges,
			TotalDue:     principal.Add(interest).Add(p.Charges),
			BalanceAfter: balance,
			Status:       StatusPending,
		})

		if final {
			break
		}
	}

	return rows, nil
}
