package domain

import "testing"

func TestDollarsToCents(t *testing.T) {
	cases := []struct {
		in      float64
		want    int64
		wantErr bool
	}{
		{12.34, 1234, false},
		{0.01, 1, false},
		{1.10, 110, false},
		{100, 10000, false},
		{19.999, 0, true},
		{0.001, 0, true},
	}
	for _, c := range cases {
		got, err := DollarsToCents(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("DollarsToCents(%v): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("DollarsToCents(%v): unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("DollarsToCents(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestCentsToDollars(t *testing.T) {
	if got := CentsToDollars(1234); got != 12.34 {
		t.Fatalf("CentsToDollars(1234) = %v, want 12.34", got)
	}
	if got := CentsToDollars(0); got != 0 {
		t.Fatalf("CentsToDollars(0) = %v, want 0", got)
	}
}
