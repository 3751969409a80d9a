package domain

import "time"

type Channel string

const (
	ChannelSale             Channel = "sale"
	ChannelSubscription     Channel = "subscription"
	ChannelTip              Channel = "tip"
	ChannelMarketplace      Channel = "marketplace"
	ChannelAffiliate        Channel = "affiliate"
	ChannelBrandDeal        Channel = "brand_deal"
	ChannelStreamingRoyalty Channel = "streaming_royalty"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelSale, ChannelSubscription, ChannelTip, ChannelMarketplace,
		ChannelAffiliate, ChannelBrandDeal, ChannelStreamingRoyalty:
		return true
	default:
		return false
	}
}

func AllChannels() []Channel {
	return []Channel{
		ChannelSale, ChannelSubscription, ChannelTip, ChannelMarketplace,
		ChannelAffiliate, ChannelBrandDeal, ChannelStreamingRoyalty,
	}
}

type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusAvailable EntryStatus = "available"
	EntryStatusWithheld  EntryStatus = "withheld"
	EntryStatusReversed  EntryStatus = "reversed"
)

// LedgerEntry is the immutable record of one revenue or adjustment event.
// Amounts and the commission split never change after append; Status is the
// only column that moves, and only along CanTransitionEntry.
type LedgerEntry struct {
	EntryID        string            `json:"entry_id"`
	CreatorID      string            `json:"creator_id"`
	Channel        Channel           `json:"channel"`
	Gross          Money             `json:"gross_amount"`
	CommissionRate Rate              `json:"commission_rate_bps"`
	Commission     Money             `json:"commission_amount"`
	Net            Money             `json:"net_amount"`
	Status         EntryStatus       `json:"status"`
	AvailableAt    time.Time         `json:"available_at"`
	SourceRef      string            `json:"source_ref"`
	ReversalOf     string            `json:"reversal_of,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Validate enforces the split invariant net + commission == gross with a
// single currency across all three amounts.
func (e LedgerEntry) Validate() error {
	if !e.Channel.Valid() {
		return ErrUnknownChannel
	}
	if e.Gross.Currency == "" || e.Gross.Currency != e.Commission.Currency || e.Gross.Currency != e.Net.Currency {
		return ErrCurrencyMismatch
	}
	if e.Net.Amount+e.Commission.Amount != e.Gross.Amount {
		return ErrInvalidAmount
	}
	if !e.CommissionRate.Valid() {
		return ErrInvalidInput
	}
	if e.ReversalOf == "" && e.Gross.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e LedgerEntry) IsReversal() bool {
	return e.ReversalOf != ""
}

func CanTransitionEntry(from, to EntryStatus) bool {
	switch from {
	case EntryStatusPending:
		return to == EntryStatusAvailable || to == EntryStatusReversed
	case EntryStatusAvailable:
		return to == EntryStatusWithheld || to == EntryStatusReversed
	case EntryStatusWithheld:
		return to == EntryStatusReversed
	default:
		return false
	}
}
