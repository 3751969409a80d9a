package domain

import (
	"testing"
	"time"
)

func TestCanTransitionEntry(t *testing.T) {
	t.Parallel()
	allowed := map[EntryStatus][]EntryStatus{
		EntryStatusPending:   {EntryStatusAvailable, EntryStatusReversed},
		EntryStatusAvailable: {EntryStatusWithheld, EntryStatusReversed},
		EntryStatusWithheld:  {EntryStatusReversed},
		EntryStatusReversed:  {},
	}
	all := []EntryStatus{EntryStatusPending, EntryStatusAvailable, EntryStatusWithheld, EntryStatusReversed}
	for from, targets := range allowed {
		for _, to := range all {
			want := false
			for _, a := range targets {
				if a == to {
					want = true
				}
			}
			if got := CanTransitionEntry(from, to); got != want {
				t.Fatalf("CanTransitionEntry(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCanTransitionHold(t *testing.T) {
	t.Parallel()
	if !CanTransitionHold(HoldStateHeld, HoldStateDisputed) {
		t.Fatal("held must allow dispute")
	}
	if !CanTransitionHold(HoldStateDisputed, HoldStateReleased) || !CanTransitionHold(HoldStateDisputed, HoldStateRefunded) {
		t.Fatal("dispute resolution must reach both terminal states")
	}
	for _, terminal := range []HoldState{HoldStateReleased, HoldStateRefunded} {
		if !terminal.Terminal() {
			t.Fatalf("%s must be terminal", terminal)
		}
		for _, to := range []HoldState{HoldStateHeld, HoldStateDisputed, HoldStateReleased, HoldStateRefunded} {
			if CanTransitionHold(terminal, to) {
				t.Fatalf("terminal state %s must not transition to %s", terminal, to)
			}
		}
	}
}

func TestCanTransitionPayout(t *testing.T) {
	t.Parallel()
	if !CanTransitionPayout(PayoutStateRequested, PayoutStateQueued) {
		t.Fatal("requested -> queued must be allowed")
	}
	if !CanTransitionPayout(PayoutStateProcessing, PayoutStatePaid) {
		t.Fatal("processing -> paid must be allowed")
	}
	if !CanTransitionPayout(PayoutStateFailed, PayoutStateQueued) {
		t.Fatal("failed -> queued retry must be allowed")
	}
	if CanTransitionPayout(PayoutStatePaid, PayoutStateQueued) {
		t.Fatal("paid is terminal")
	}
	for _, from := range []PayoutState{PayoutStateRequested, PayoutStateQueued, PayoutStateProcessing} {
		if !CanTransitionPayout(from, PayoutStateQuarantined) {
			t.Fatalf("%s must be quarantinable", from)
		}
	}
	for _, from := range []PayoutState{PayoutStatePaid, PayoutStateFailed, PayoutStateQuarantined} {
		if CanTransitionPayout(from, PayoutStateQuarantined) {
			t.Fatalf("%s must not be quarantinable", from)
		}
	}
	if !PayoutStatePaid.Terminal() || !PayoutStateFailed.Terminal() {
		t.Fatal("paid and failed are the terminal payout states")
	}
	if PayoutStateQuarantined.Terminal() {
		t.Fatal("quarantined keeps the request alive")
	}
}

func TestClampAutoRelease(t *testing.T) {
	t.Parallel()
	floor := 48 * time.Hour
	ceiling := 14 * 24 * time.Hour
	if got := ClampAutoRelease(24*time.Hour, floor, ceiling); got != floor {
		t.Fatalf("below floor = %v, want %v", got, floor)
	}
	if got := ClampAutoRelease(30*24*time.Hour, floor, ceiling); got != ceiling {
		t.Fatalf("above ceiling = %v, want %v", got, ceiling)
	}
	if got := ClampAutoRelease(72*time.Hour, floor, ceiling); got != 72*time.Hour {
		t.Fatalf("in range = %v, want 72h", got)
	}
}

func TestLedgerEntryValidate(t *testing.T) {
	t.Parallel()
	base := LedgerEntry{
		EntryID:        "e1",
		CreatorID:      "c1",
		Channel:        ChannelSale,
		Gross:          NewMoney(1000, "EUR"),
		CommissionRate: 1500,
		Commission:     NewMoney(150, "EUR"),
		Net:            NewMoney(850, "EUR"),
		Status:         EntryStatusPending,
		SourceRef:      "order:1",
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid entry rejected: %v", err)
	}

	broken := base
	broken.Net = NewMoney(800, "EUR")
	if err := broken.Validate(); err != ErrInvalidAmount {
		t.Fatalf("split mismatch = %v, want ErrInvalidAmount", err)
	}

	mixed := base
	mixed.Net = NewMoney(850, "USD")
	if err := mixed.Validate(); err != ErrCurrencyMismatch {
		t.Fatalf("mixed currency = %v, want ErrCurrencyMismatch", err)
	}

	zero := base
	zero.Gross = NewMoney(0, "EUR")
	zero.Commission = NewMoney(0, "EUR")
	zero.Net = NewMoney(0, "EUR")
	if err := zero.Validate(); err != ErrInvalidAmount {
		t.Fatalf("zero gross = %v, want ErrInvalidAmount", err)
	}

	reversal := base
	reversal.ReversalOf = base.EntryID
	reversal.Gross = base.Gross.Neg()
	reversal.Commission = base.Commission.Neg()
	reversal.Net = base.Net.Neg()
	if err := reversal.Validate(); err != nil {
		t.Fatalf("negated reversal rejected: %v", err)
	}
}
