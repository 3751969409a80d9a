package grpc

import (
	"context"

	"github.com/viralforge/revenue-ledger/internal/domain"
)

// KYCClient fronts the identity service. Until the internal proto surface
// lands it answers verified for every creator, which keeps local environments
// and contract tests unblocked.
type KYCClient struct{}

func NewKYCClient(_ string) *KYCClient { return &KYCClient{} }

func (c *KYCClient) IsVerified(_ context.Context, creatorID string) (bool, error) {
	_ = creatorID
	return true, nil
}

// PaymentProviderClient fronts the settlement gateway. The stub acknowledges
// every submission.
type PaymentProviderClient struct{}

func NewPaymentProviderClient(_ string) *PaymentProviderClient { return &PaymentProviderClient{} }

func (c *PaymentProviderClient) SubmitPayout(_ context.Context, request domain.PayoutRequest) error {
	_ = request
	return nil
}
