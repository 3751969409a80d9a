package domain

import "testing"

func TestRateApplyRounding(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		rate   Rate
		amount int64
		want   int64
	}{
		{"sale default on 10 euro", 1500, 1000, 150},
		{"tip default on 5 euro", 1000, 500, 50},
		{"half minor unit rounds up", 1500, 1, 0},
		{"exact tie rounds away", 5000, 1, 1},
		{"tie on three", 5000, 3, 2},
		{"negative tie rounds away from zero", 5000, -1, -1},
		{"negative amount", 1500, -1000, -150},
		{"zero rate", 0, 1000, 0},
		{"full rate", 10000, 1000, 1000},
		{"odd split", 1500, 333, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := tc.rate.Apply(NewMoney(tc.amount, "EUR"))
			if got.Amount != tc.want {
				t.Fatalf("Apply(%d) = %d, want %d", tc.amount, got.Amount, tc.want)
			}
			if got.Currency != "EUR" {
				t.Fatalf("Apply currency = %q, want EUR", got.Currency)
			}
		})
	}
}

func TestRateApplyNeverExceedsAmount(t *testing.T) {
	t.Parallel()
	for amount := int64(1); amount <= 2000; amount++ {
		commission := Rate(1500).Apply(NewMoney(amount, "EUR"))
		if commission.Amount > amount {
			t.Fatalf("commission %d exceeds gross %d", commission.Amount, amount)
		}
		if commission.Amount < 0 {
			t.Fatalf("negative commission %d for gross %d", commission.Amount, amount)
		}
	}
}

func TestRateFromBasisPoints(t *testing.T) {
	t.Parallel()
	if _, err := RateFromBasisPoints(-1); err == nil {
		t.Fatal("expected error for negative rate")
	}
	if _, err := RateFromBasisPoints(10001); err == nil {
		t.Fatal("expected error for rate above 100%")
	}
	rate, err := RateFromBasisPoints(2500)
	if err != nil {
		t.Fatalf("RateFromBasisPoints(2500): %v", err)
	}
	if rate.BasisPoints() != 2500 {
		t.Fatalf("BasisPoints() = %d, want 2500", rate.BasisPoints())
	}
}

func TestMoneyArithmetic(t *testing.T) {
	t.Parallel()

	sum, err := NewMoney(1000, "EUR").Add(NewMoney(250, "EUR"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if sum.Amount != 1250 {
		t.Fatalf("Add = %d, want 1250", sum.Amount)
	}
	if _, err := NewMoney(1000, "EUR").Add(NewMoney(250, "USD")); err != ErrCurrencyMismatch {
		t.Fatalf("Add across currencies = %v, want ErrCurrencyMismatch", err)
	}
	if _, err := NewMoney(1000, "EUR").Sub(NewMoney(250, "USD")); err != ErrCurrencyMismatch {
		t.Fatalf("Sub across currencies = %v, want ErrCurrencyMismatch", err)
	}
	if got := NewMoney(1000, "EUR").Neg(); got.Amount != -1000 {
		t.Fatalf("Neg = %d, want -1000", got.Amount)
	}
}

func TestMoneyCompare(t *testing.T) {
	t.Parallel()
	got, err := NewMoney(100, "EUR").Compare(NewMoney(200, "EUR"))
	if err != nil || got != -1 {
		t.Fatalf("Compare = (%d, %v), want (-1, nil)", got, err)
	}
	if _, err := NewMoney(100, "EUR").Compare(NewMoney(100, "USD")); err != ErrCurrencyMismatch {
		t.Fatalf("Compare across currencies = %v, want ErrCurrencyMismatch", err)
	}
}

func TestMoneyString(t *testing.T) {
	t.Parallel()
	cases := []struct {
		amount int64
		want   string
	}{
		{1000, "10.00 EUR"},
		{1005, "10.05 EUR"},
		{-150, "-1.50 EUR"},
		{0, "0.00 EUR"},
		{7, "0.07 EUR"},
	}
	for _, tc := range cases {
		if got := NewMoney(tc.amount, "EUR").String(); got != tc.want {
			t.Fatalf("String(%d) = %q, want %q", tc.amount, got, tc.want)
		}
	}
}

func TestNewMoneyNormalizesCurrency(t *testing.T) {
	t.Parallel()
	if got := NewMoney(1, " eur ").Currency; got != "EUR" {
		t.Fatalf("currency = %q, want EUR", got)
	}
}
