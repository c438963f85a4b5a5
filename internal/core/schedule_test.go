package core

import "testing"

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name string
		from Date
		freq Frequency
		want Date
	}{
		{"daily advances one day", NewDate(2024, 1, 15), Daily, NewDate(2024, 1, 16)},
		{"daily across month end", NewDate(2024, 1, 31), Daily, NewDate(2024, 2, 1)},
		{"weekly advances seven days", NewDate(2024, 1, 15), Weekly, NewDate(2024, 1, 22)},
		{"weekly across year end", NewDate(2024, 12, 30), Weekly, NewDate(2025, 1, 6)},
		{"monthly keeps day of month", NewDate(2024, 3, 10), Monthly, NewDate(2024, 4, 10)},
		{"monthly clamps Jan 31 to Feb 29 in leap year", NewDate(2024, 1, 31), Monthly, NewDate(2024, 2, 29)},
		{"monthly clamps Jan 31 to Feb 28", NewDate(2025, 1, 31), Monthly, NewDate(2025, 2, 28)},
		{"monthly clamps 31 to 30-day month", NewDate(2024, 3, 31), Monthly, NewDate(2024, 4, 30)},
		{"monthly across year end", NewDate(2024, 12, 15), Monthly, NewDate(2025, 1, 15)},
		{"yearly keeps month and day", NewDate(2024, 6, 15), Yearly, NewDate(2025, 6, 15)},
		{"yearly clamps Feb 29 to Feb 28", NewDate(2024, 2, 29), Yearly, NewDate(2025, 2, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextOccurrence(tt.from, tt.freq)
			if !got.Equal(tt.want.Time) {
				t.Errorf("NextOccurrence(%s, %s) = %s, want %s", tt.from, tt.freq, got, tt.want)
			}
		})
	}
}

func TestRecurringExpenseRetires(t *testing.T) {
	tests := []struct {
		name string
		end  Date
		next Date
		want bool
	}{
		{"no end date never retires", Date{}, NewDate(2030, 1, 1), false},
		{"next before end stays active", NewDate(2024, 1, 11), NewDate(2024, 1, 10), false},
		{"next equal to end stays active", NewDate(2024, 1, 11), NewDate(2024, 1, 11), false},
		{"next past end retires", NewDate(2024, 1, 11), NewDate(2024, 1, 12), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := RecurringExpense{EndDate: tt.end}
			if got := re.Retires(tt.next); got != tt.want {
				t.Errorf("Retires(%s) = %v, want %v", tt.next, got, tt.want)
			}
		})
	}
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    Frequency
		wantErr bool
	}{
		{"daily", Daily, false},
		{"weekly", Weekly, false},
		{"monthly", Monthly, false},
		{"yearly", Yearly, false},
		{"MONTHLY", Monthly, false},
		{" daily ", Daily, false},
		{"biannual", "", true},
		{"fortnightly", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFrequency(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFrequency(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFrequency(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
