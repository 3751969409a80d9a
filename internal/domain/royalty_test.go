package domain

import (
	"testing"
	"time"
)

func TestRoyaltyGross(t *testing.T) {
	t.Parallel()
	rate := NewMoney(400, "EUR")

	cases := []struct {
		name    string
		streams int64
		want    int64
	}{
		{"zero streams", 0, 0},
		{"one stream rounds to nearest", 1, 0},
		{"two streams round up", 2, 1},
		{"thousand streams", 1000, 400},
		{"odd count", 12345, 4938},
		{"single minor unit boundary", 3, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := RoyaltyGross(tc.streams, rate)
			if got.Amount != tc.want {
				t.Fatalf("RoyaltyGross(%d) = %d, want %d", tc.streams, got.Amount, tc.want)
			}
			if got.Currency != "EUR" {
				t.Fatalf("currency = %q, want EUR", got.Currency)
			}
		})
	}

	if got := RoyaltyGross(-5, rate); got.Amount != 0 {
		t.Fatalf("negative stream count produced %d", got.Amount)
	}
}

func TestRoyaltySourceRef(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got := RoyaltySourceRef("track-9", start, end)
	want := "royalty:track-9:1769904000:1772323200"
	if got != want {
		t.Fatalf("RoyaltySourceRef = %q, want %q", got, want)
	}
}
