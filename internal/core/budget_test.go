package core

import "testing"

func TestComputeProgress(t *testing.T) {
	budget := Budget{
		Limit:     Money{Cents: 100000},
		StartDate: NewDate(2025, 1, 1),
		EndDate:   NewDate(2025, 1, 31),
	}

	tests := []struct {
		name         string
		spent        int64
		today        Date
		wantPercent  float64
		wantExceeded bool
		wantDaysLeft int
	}{
		{"half spent", 50000, NewDate(2025, 1, 21), 50, false, 10},
		{"over limit clamps", 150000, NewDate(2025, 1, 21), 100, true, 10},
		{"exactly at limit", 100000, NewDate(2025, 1, 31), 100, false, 0},
		{"window ended", 1000, NewDate(2025, 2, 15), 1, false, 0},
		{"nothing spent", 0, NewDate(2024, 12, 30), 0, false, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ComputeProgress(budget, Money{Cents: tt.spent}, tt.today)
			if p.ProgressPercent != tt.wantPercent {
				t.Errorf("percent = %v, want %v", p.ProgressPercent, tt.wantPercent)
			}
			if p.IsExceeded != tt.wantExceeded {
				t.Errorf("exceeded = %v, want %v", p.IsExceeded, tt.wantExceeded)
			}
			if p.DaysLeft != tt.wantDaysLeft {
				t.Errorf("days left = %d, want %d", p.DaysLeft, tt.wantDaysLeft)
			}
			if p.Remaining.Cents < 0 {
				t.Errorf("remaining went negative: %d", p.Remaining.Cents)
			}
		})
	}
}

func TestComputeProgressZeroLimit(t *testing.T) {
	p := ComputeProgress(Budget{EndDate: NewDate(2025, 1, 1)}, Money{Cents: 10}, NewDate(2025, 1, 1))
	if p.ProgressPercent != 0 {
		t.Fatalf("expected 0 percent, got %v", p.ProgressPercent)
	}
	if !p.IsExceeded {
		t.Fatal("spend above a zero limit is exceeded")
	}
}
