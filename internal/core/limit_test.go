package core

import (
	"errors"
	"testing"
)

func TestApplyExpense(t *testing.T) {
	tests := []struct {
		name          string
		salary        int64
		limit         int64
		amount        int64
		wantRemaining int64
		wantWarned    bool
		wantErr       error
	}{
		{
			name:          "plenty of headroom - no warning",
			salary:        100000,
			limit:         20000,
			amount:        10000,
			wantRemaining: 90000,
		},
		{
			name:          "lands exactly on the limit - warns",
			salary:        100000,
			limit:         20000,
			amount:        80000,
			wantRemaining: 20000,
			wantWarned:    true,
		},
		{
			name:          "one cent above the limit - no warning",
			salary:        100000,
			limit:         20000,
			amount:        79999,
			wantRemaining: 20001,
		},
		{
			name:          "one cent below the limit - warns",
			salary:        100000,
			limit:         20000,
			amount:        80001,
			wantRemaining: 19999,
			wantWarned:    true,
		},
		{
			name:          "spends the whole salary - warns",
			salary:        5000,
			limit:         0,
			amount:        5000,
			wantRemaining: 0,
			wantWarned:    true,
		},
		{
			name:    "amount exceeds salary - insufficient funds",
			salary:  5000,
			limit:   1000,
			amount:  5001,
			wantErr: ErrInsufficientFunds,
		},
		{
			name:    "zero salary rejects any amount",
			salary:  0,
			limit:   0,
			amount:  1,
			wantErr: ErrInsufficientFunds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remaining, warned, err := ApplyExpense(
				Money{Cents: tt.salary}, Money{Cents: tt.limit}, Money{Cents: tt.amount})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ApplyExpense() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				// Salary must be returned untouched on failure.
				if remaining.Cents != tt.salary {
					t.Errorf("remaining = %d after failure, want untouched %d", remaining.Cents, tt.salary)
				}
				return
			}
			if remaining.Cents != tt.wantRemaining {
				t.Errorf("remaining = %d, want %d", remaining.Cents, tt.wantRemaining)
			}
			if warned != tt.wantWarned {
				t.Errorf("warned = %v, want %v", warned, tt.wantWarned)
			}
		})
	}
}
