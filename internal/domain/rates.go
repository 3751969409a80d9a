package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Default platform commission per channel, in basis points. Affiliate has no
// platform-wide default: the rate is defined per referral link and arrives
// with the conversion event.
var defaultCommission = map[Channel]Rate{
	ChannelSale:             1500,
	ChannelSubscription:     1500,
	ChannelTip:              1000,
	ChannelMarketplace:      1000,
	ChannelBrandDeal:        1500,
	ChannelStreamingRoyalty: 1000,
}

func DefaultCommissionRate(c Channel) (Rate, bool) {
	rate, ok := defaultCommission[c]
	return rate, ok
}

const saleAvailabilityDelay = 48 * time.Hour

// AvailabilityAt returns when funds from an event on the given channel become
// withdrawable. Marketplace entries posted here are the direct path; funds
// released out of escrow are posted Available immediately by the escrow
// manager and never pass through this delay.
func AvailabilityAt(c Channel, occurredAt time.Time) time.Time {
	switch c {
	case ChannelSale, ChannelBrandDeal, ChannelMarketplace:
		return occurredAt.Add(saleAvailabilityDelay)
	case ChannelSubscription:
		return firstOfFollowingMonth(occurredAt)
	default:
		// Tips, affiliate conversions and royalty postings clear immediately.
		return occurredAt
	}
}

func firstOfFollowingMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// MinRateChangeNotice is the shortest allowed gap between scheduling a
// commission change and its effective date.
const MinRateChangeNotice = 30 * 24 * time.Hour

// RateChange overrides a channel's default commission for events timestamped
// at or after EffectiveAt. Changes must be signed with the platform rate key.
type RateChange struct {
	ChangeID    string    `json:"change_id"`
	Channel     Channel   `json:"channel"`
	Rate        Rate      `json:"rate_bps"`
	EffectiveAt time.Time `json:"effective_at"`
	Signature   string    `json:"signature"`
	CreatedAt   time.Time `json:"created_at"`
}

func SignRateChange(secret []byte, channel Channel, rate Rate, effectiveAt time.Time) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%s|%d|%d", channel, rate.BasisPoints(), effectiveAt.UTC().Unix())
	return hex.EncodeToString(mac.Sum(nil))
}

func (rc RateChange) VerifySignature(secret []byte) bool {
	want := SignRateChange(secret, rc.Channel, rc.Rate, rc.EffectiveAt)
	return hmac.Equal([]byte(want), []byte(rc.Signature))
}

func (rc RateChange) Validate(now time.Time, secret []byte) error {
	if !rc.Channel.Valid() {
		return ErrUnknownChannel
	}
	if !rc.Rate.Valid() {
		return ErrInvalidInput
	}
	if rc.EffectiveAt.Before(now.Add(MinRateChangeNotice)) {
		return ErrRateChangeNotice
	}
	if !rc.VerifySignature(secret) {
		return ErrRateChangeSignature
	}
	return nil
}
