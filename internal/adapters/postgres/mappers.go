package postgres

import (
	"encoding/json"
	"time"

	"github.com/viralforge/revenue-ledger/internal/domain"
)

func toLedgerEntryModel(e domain.LedgerEntry) ledgerEntryModel {
	metadata := ""
	if len(e.Metadata) > 0 {
		if raw, err := json.Marshal(e.Metadata); err == nil {
			metadata = string(raw)
		}
	}
	return ledgerEntryModel{
		EntryID:           e.EntryID,
		CreatorID:         e.CreatorID,
		Channel:           string(e.Channel),
		GrossMinor:        e.Gross.Amount,
		CommissionRateBPS: e.CommissionRate.BasisPoints(),
		CommissionMinor:   e.Commission.Amount,
		NetMinor:          e.Net.Amount,
		Currency:          e.Gross.Currency,
		Status:            string(e.Status),
		AvailableAt:       e.AvailableAt,
		SourceRef:         e.SourceRef,
		ReversalOf:        e.ReversalOf,
		Reason:            e.Reason,
		Metadata:          metadata,
		CreatedAt:         e.CreatedAt,
	}
}

func toDomainEntry(m ledgerEntryModel) domain.LedgerEntry {
	var metadata map[string]string
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &metadata)
	}
	return domain.LedgerEntry{
		EntryID:        m.EntryID,
		CreatorID:      m.CreatorID,
		Channel:        domain.Channel(m.Channel),
		Gross:          domain.Money{Amount: m.GrossMinor, Currency: m.Currency},
		CommissionRate: domain.Rate(m.CommissionRateBPS),
		Commission:     domain.Money{Amount: m.CommissionMinor, Currency: m.Currency},
		Net:            domain.Money{Amount: m.NetMinor, Currency: m.Currency},
		Status:         domain.EntryStatus(m.Status),
		AvailableAt:    m.AvailableAt,
		SourceRef:      m.SourceRef,
		ReversalOf:     m.ReversalOf,
		Reason:         m.Reason,
		Metadata:       metadata,
		CreatedAt:      m.CreatedAt,
	}
}

func toHoldModel(h domain.EscrowHold) escrowHoldModel {
	return escrowHoldModel{
		HoldID:                  h.HoldID,
		OrderID:                 h.OrderID,
		BuyerID:                 h.BuyerID,
		CreatorID:               h.CreatorID,
		AmountMinor:             h.Amount.Amount,
		Currency:                h.Amount.Currency,
		State:                   string(h.State),
		AutoReleaseDelaySeconds: int64(h.AutoReleaseDelay / time.Second),
		DeliveredAt:             h.DeliveredAt,
		AutoReleaseAt:           h.AutoReleaseAt,
		DisputeReason:           h.DisputeReason,
		Resolution:              h.Resolution,
		CreatedAt:               h.CreatedAt,
		UpdatedAt:               h.UpdatedAt,
		ClosedAt:                h.ClosedAt,
	}
}

func toDomainHold(m escrowHoldModel) domain.EscrowHold {
	return domain.EscrowHold{
		HoldID:           m.HoldID,
		OrderID:          m.OrderID,
		BuyerID:          m.BuyerID,
		CreatorID:        m.CreatorID,
		Amount:           domain.Money{Amount: m.AmountMinor, Currency: m.Currency},
		State:            domain.HoldState(m.State),
		AutoReleaseDelay: time.Duration(m.AutoReleaseDelaySeconds) * time.Second,
		DeliveredAt:      m.DeliveredAt,
		AutoReleaseAt:    m.AutoReleaseAt,
		DisputeReason:    m.DisputeReason,
		Resolution:       m.Resolution,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		ClosedAt:         m.ClosedAt,
	}
}

func toPayoutModel(p domain.PayoutRequest) payoutModel {
	return payoutModel{
		RequestID:     p.RequestID,
		CreatorID:     p.CreatorID,
		AmountMinor:   p.Amount.Amount,
		Currency:      p.Amount.Currency,
		Method:        string(p.Method),
		State:         string(p.State),
		KYCVerified:   p.KYCVerified,
		FailureReason: p.FailureReason,
		Attempts:      p.Attempts,
		RequestedAt:   p.RequestedAt,
		QueuedAt:      p.QueuedAt,
		ProcessingAt:  p.ProcessingAt,
		SettledAt:     p.SettledAt,
		FailedAt:      p.FailedAt,
		QuarantinedAt: p.QuarantinedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toDomainPayout(m payoutModel) domain.PayoutRequest {
	return domain.PayoutRequest{
		RequestID:     m.RequestID,
		CreatorID:     m.CreatorID,
		Amount:        domain.Money{Amount: m.AmountMinor, Currency: m.Currency},
		Method:        domain.PayoutMethod(m.Method),
		State:         domain.PayoutState(m.State),
		KYCVerified:   m.KYCVerified,
		FailureReason: m.FailureReason,
		Attempts:      m.Attempts,
		RequestedAt:   m.RequestedAt,
		QueuedAt:      m.QueuedAt,
		ProcessingAt:  m.ProcessingAt,
		SettledAt:     m.SettledAt,
		FailedAt:      m.FailedAt,
		QuarantinedAt: m.QuarantinedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toRoyaltyPeriodModel(p domain.RoyaltyPeriod) royaltyPeriodModel {
	return royaltyPeriodModel{
		TrackID:        p.TrackID,
		PeriodStart:    p.PeriodStart,
		PeriodEnd:      p.PeriodEnd,
		CreatorID:      p.CreatorID,
		TotalStreams:   p.TotalStreams,
		RatePer1KMinor: p.RatePer1K.Amount,
		GrossMinor:     p.Gross.Amount,
		Currency:       p.Gross.Currency,
		EntryID:        p.EntryID,
		ClosedAt:       p.ClosedAt,
	}
}

func toDomainRoyaltyPeriod(m royaltyPeriodModel) domain.RoyaltyPeriod {
	return domain.RoyaltyPeriod{
		TrackID:      m.TrackID,
		CreatorID:    m.CreatorID,
		PeriodStart:  m.PeriodStart,
		PeriodEnd:    m.PeriodEnd,
		TotalStreams: m.TotalStreams,
		RatePer1K:    domain.Money{Amount: m.RatePer1KMinor, Currency: m.Currency},
		Gross:        domain.Money{Amount: m.GrossMinor, Currency: m.Currency},
		EntryID:      m.EntryID,
		ClosedAt:     m.ClosedAt,
	}
}
