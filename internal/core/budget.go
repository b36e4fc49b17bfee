package core

// BudgetProgress is a read-only projection of a budget against its spend.
type BudgetProgress struct {
	Budget          Budget  `json:"budget"`
	Spent           Money   `json:"spent"`
	Remaining       Money   `json:"remaining"`
	ProgressPercent float64 `json:"progress_percent"`
	IsExceeded      bool    `json:"is_exceeded"`
	DaysLeft        int     `json:"days_left"`
}

// ComputeProgress derives the progress metrics of b given its spend.
// The percentage is clamped at 100 for display, while IsExceeded compares
// the unclamped amounts.
func ComputeProgress(b Budget, spent Money, today Date) BudgetProgress {
	p := BudgetProgress{
		Budget:     b,
		Spent:      spent,
		Remaining:  b.Limit.Sub(spent),
		IsExceeded: spent.Cents > b.Limit.Cents,
	}
	if p.Remaining.Cents < 0 {
		p.Remaining = Money{}
	}

	if b.Limit.Cents > 0 {
		p.ProgressPercent = Percent(spent, b.Limit, 2)
		if p.ProgressPercent > 100 {
			p.ProgressPercent = 100
		}
	}

	if days := today.DaysUntil(b.EndDate); days > 0 {
		p.DaysLeft = days
	}
	return p
}
