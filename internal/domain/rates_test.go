package domain

import (
	"testing"
	"time"
)

func TestDefaultCommissionRate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		channel Channel
		want    Rate
	}{
		{ChannelSale, 1500},
		{ChannelSubscription, 1500},
		{ChannelBrandDeal, 1500},
		{ChannelTip, 1000},
		{ChannelMarketplace, 1000},
		{ChannelStreamingRoyalty, 1000},
	}
	for _, tc := range cases {
		rate, ok := DefaultCommissionRate(tc.channel)
		if !ok || rate != tc.want {
			t.Fatalf("DefaultCommissionRate(%s) = (%d, %v), want (%d, true)", tc.channel, rate, ok, tc.want)
		}
	}
	if _, ok := DefaultCommissionRate(ChannelAffiliate); ok {
		t.Fatal("affiliate must not carry a platform default rate")
	}
}

func TestAvailabilityAt(t *testing.T) {
	t.Parallel()
	occurred := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

	cases := []struct {
		channel Channel
		want    time.Time
	}{
		{ChannelSale, occurred.Add(48 * time.Hour)},
		{ChannelBrandDeal, occurred.Add(48 * time.Hour)},
		{ChannelMarketplace, occurred.Add(48 * time.Hour)},
		{ChannelSubscription, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
		{ChannelTip, occurred},
		{ChannelAffiliate, occurred},
		{ChannelStreamingRoyalty, occurred},
	}
	for _, tc := range cases {
		if got := AvailabilityAt(tc.channel, occurred); !got.Equal(tc.want) {
			t.Fatalf("AvailabilityAt(%s) = %v, want %v", tc.channel, got, tc.want)
		}
	}
}

func TestAvailabilityAtDecemberRollover(t *testing.T) {
	t.Parallel()
	occurred := time.Date(2026, 12, 20, 23, 0, 0, 0, time.UTC)
	want := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := AvailabilityAt(ChannelSubscription, occurred); !got.Equal(want) {
		t.Fatalf("AvailabilityAt(subscription) = %v, want %v", got, want)
	}
}

func TestRateChangeValidate(t *testing.T) {
	t.Parallel()
	secret := []byte("rate-signing-secret")
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	effective := now.Add(45 * 24 * time.Hour)

	valid := RateChange{
		Channel:     ChannelSale,
		Rate:        2000,
		EffectiveAt: effective,
		Signature:   SignRateChange(secret, ChannelSale, 2000, effective),
	}
	if err := valid.Validate(now, secret); err != nil {
		t.Fatalf("valid change rejected: %v", err)
	}

	short := valid
	short.EffectiveAt = now.Add(10 * 24 * time.Hour)
	short.Signature = SignRateChange(secret, short.Channel, short.Rate, short.EffectiveAt)
	if err := short.Validate(now, secret); err != ErrRateChangeNotice {
		t.Fatalf("short notice = %v, want ErrRateChangeNotice", err)
	}

	forged := valid
	forged.Signature = SignRateChange([]byte("wrong-secret"), forged.Channel, forged.Rate, forged.EffectiveAt)
	if err := forged.Validate(now, secret); err != ErrRateChangeSignature {
		t.Fatalf("forged signature = %v, want ErrRateChangeSignature", err)
	}

	tampered := valid
	tampered.Rate = 500
	if err := tampered.Validate(now, secret); err != ErrRateChangeSignature {
		t.Fatalf("tampered rate = %v, want ErrRateChangeSignature", err)
	}

	badChannel := valid
	badChannel.Channel = Channel("lottery")
	if err := badChannel.Validate(now, secret); err != ErrUnknownChannel {
		t.Fatalf("unknown channel = %v, want ErrUnknownChannel", err)
	}
}
