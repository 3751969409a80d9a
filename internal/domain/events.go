package domain

const (
	CanonicalEventClassDomain        = "domain"
	CanonicalEventClassAnalyticsOnly = "analytics_only"
	CanonicalEventClassOps           = "ops"
)

const (
	EventEntryRecorded       = "revenue.entry.recorded"
	EventEntryReversed       = "revenue.entry.reversed"
	EventEntryAvailable      = "revenue.entry.available"
	EventEscrowHoldCreated   = "escrow.hold.created"
	EventEscrowHoldReleased  = "escrow.hold.released"
	EventEscrowHoldRefunded  = "escrow.hold.refunded"
	EventEscrowHoldDisputed  = "escrow.hold.disputed"
	EventRoyaltyPeriodClosed = "royalty.period.closed"
	EventPayoutRequested     = "payout.requested"
	EventPayoutPaid          = "payout.paid"
	EventPayoutFailed        = "payout.failed"
	EventPayoutQuarantined   = "payout.quarantined"
	EventStreamRecorded      = "stream.recorded"
)

func IsCanonicalEmittedEvent(eventType string) bool {
	switch eventType {
	case EventEntryRecorded, EventEntryReversed, EventEntryAvailable,
		EventEscrowHoldCreated, EventEscrowHoldReleased, EventEscrowHoldRefunded, EventEscrowHoldDisputed,
		EventRoyaltyPeriodClosed,
		EventPayoutRequested, EventPayoutPaid, EventPayoutFailed, EventPayoutQuarantined,
		EventStreamRecorded:
		return true
	default:
		return false
	}
}

func CanonicalEventClass(eventType string) string {
	switch eventType {
	case EventStreamRecorded, EventEntryAvailable:
		return CanonicalEventClassAnalyticsOnly
	default:
		if IsCanonicalEmittedEvent(eventType) {
			return CanonicalEventClassDomain
		}
		return ""
	}
}

func CanonicalPartitionKeyPath(eventType string) string {
	if IsCanonicalEmittedEvent(eventType) {
		return "data.creator_id"
	}
	return ""
}
