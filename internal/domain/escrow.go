package domain

import "time"

type HoldState string

const (
	HoldStateHeld     HoldState = "held"
	HoldStateDisputed HoldState = "disputed"
	HoldStateReleased HoldState = "released_to_creator"
	HoldStateRefunded HoldState = "refunded_to_buyer"
)

func (s HoldState) Terminal() bool {
	return s == HoldStateReleased || s == HoldStateRefunded
}

func CanTransitionHold(from, to HoldState) bool {
	switch from {
	case HoldStateHeld:
		return to == HoldStateReleased || to == HoldStateRefunded || to == HoldStateDisputed
	case HoldStateDisputed:
		return to == HoldStateReleased || to == HoldStateRefunded
	default:
		return false
	}
}

const (
	// DefaultAutoRelease applies when an order carries no override: held funds
	// release to the creator five days after delivery submission unless the
	// buyer acted first.
	DefaultAutoRelease = 5 * 24 * time.Hour
	MinAutoRelease     = 48 * time.Hour
	MaxAutoRelease     = 14 * 24 * time.Hour
)

// ClampAutoRelease bounds a per-order auto-release override to the
// administrator-configured floor and ceiling.
func ClampAutoRelease(d, floor, ceiling time.Duration) time.Duration {
	if d < floor {
		return floor
	}
	if d > ceiling {
		return ceiling
	}
	return d
}

// EscrowHold holds marketplace or service-order funds until delivery is
// accepted, the auto-release timer elapses, the buyer is refunded, or a
// mediator resolves a dispute. Exactly one terminal transition is reachable.
type EscrowHold struct {
	HoldID           string        `json:"hold_id"`
	OrderID          string        `json:"order_id"`
	BuyerID          string        `json:"buyer_id"`
	CreatorID        string        `json:"creator_id"`
	Amount           Money         `json:"amount"`
	State            HoldState     `json:"state"`
	AutoReleaseDelay time.Duration `json:"auto_release_delay"`
	DeliveredAt      *time.Time    `json:"delivered_at,omitempty"`
	AutoReleaseAt    *time.Time    `json:"auto_release_at,omitempty"`
	DisputeReason    string        `json:"dispute_reason,omitempty"`
	Resolution       string        `json:"resolution,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	ClosedAt         *time.Time    `json:"closed_at,omitempty"`
}
