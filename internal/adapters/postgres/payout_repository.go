package postgres

import (
	"context"
	"errors"

	"github.com/viralforge/revenue-ledger/internal/domain"
	"gorm.io/gorm"
)

type payoutRepository struct {
	db *gorm.DB
}

func (r *payoutRepository) Create(ctx context.Context, request domain.PayoutRequest) error {
	rec := toPayoutModel(request)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *payoutRepository) Update(ctx context.Context, request domain.PayoutRequest, from domain.PayoutState) error {
	rec := toPayoutModel(request)
	result := r.db.WithContext(ctx).Model(&payoutModel{}).Where("request_id = ? AND state = ?", rec.RequestID, string(from)).Updates(map[string]any{
		"state":          rec.State,
		"failure_reason": rec.FailureReason,
		"attempts":       rec.Attempts,
		"queued_at":      rec.QueuedAt,
		"processing_at":  rec.ProcessingAt,
		"settled_at":     rec.SettledAt,
		"failed_at":      rec.FailedAt,
		"quarantined_at": rec.QuarantinedAt,
		"updated_at":     rec.UpdatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&payoutModel{}).Where("request_id = ?", rec.RequestID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		// Row exists but its state moved underneath us.
		return domain.ErrInvalidStateTransition
	}
	return nil
}

func (r *payoutRepository) GetByID(ctx context.Context, requestID string) (domain.PayoutRequest, error) {
	var rec payoutModel
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.PayoutRequest{}, domain.ErrNotFound
		}
		return domain.PayoutRequest{}, err
	}
	return toDomainPayout(rec), nil
}

func (r *payoutRepository) FindActiveByCreator(ctx context.Context, creatorID string) (domain.PayoutRequest, error) {
	var rec payoutModel
	err := r.db.WithContext(ctx).
		Where("creator_id = ? AND state NOT IN ?", creatorID, []string{string(domain.PayoutStatePaid), string(domain.PayoutStateFailed)}).
		Order("requested_at asc").
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.PayoutRequest{}, domain.ErrNotFound
		}
		return domain.PayoutRequest{}, err
	}
	return toDomainPayout(rec), nil
}

func (r *payoutRepository) ListByState(ctx context.Context, state domain.PayoutState, limit int) ([]domain.PayoutRequest, error) {
	query := r.db.WithContext(ctx).Where("state = ?", string(state)).Order("requested_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []payoutModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.PayoutRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainPayout(row))
	}
	return out, nil
}
