package ports

import (
	"context"

	"github.com/viralforge/revenue-ledger/internal/domain"
)

// KYCClient asks the identity collaborator whether a creator has passed
// verification. The answer is snapshotted on the payout request.
type KYCClient interface {
	IsVerified(ctx context.Context, creatorID string) (bool, error)
}

// PaymentProviderClient submits an accepted payout to the external bank or
// PayPal rail. Implementations must return domain.ErrProviderTimeout or
// domain.ErrProviderRejected for retryable failures.
type PaymentProviderClient interface {
	SubmitPayout(ctx context.Context, request domain.PayoutRequest) error
}
