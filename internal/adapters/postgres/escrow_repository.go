package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/viralforge/revenue-ledger/internal/domain"
	"gorm.io/gorm"
)

type escrowHoldRepository struct {
	db *gorm.DB
}

func (r *escrowHoldRepository) Create(ctx context.Context, hold domain.EscrowHold) error {
	rec := toHoldModel(hold)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *escrowHoldRepository) GetByID(ctx context.Context, holdID string) (domain.EscrowHold, error) {
	var rec escrowHoldModel
	if err := r.db.WithContext(ctx).Where("hold_id = ?", holdID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.EscrowHold{}, domain.ErrNotFound
		}
		return domain.EscrowHold{}, err
	}
	return toDomainHold(rec), nil
}

func (r *escrowHoldRepository) GetByOrderID(ctx context.Context, orderID string) (domain.EscrowHold, error) {
	var rec escrowHoldModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.EscrowHold{}, domain.ErrNotFound
		}
		return domain.EscrowHold{}, err
	}
	return toDomainHold(rec), nil
}

func (r *escrowHoldRepository) Update(ctx context.Context, hold domain.EscrowHold) error {
	rec := toHoldModel(hold)
	result := r.db.WithContext(ctx).Model(&escrowHoldModel{}).Where("hold_id = ?", rec.HoldID).Updates(map[string]any{
		"state":           rec.State,
		"delivered_at":    rec.DeliveredAt,
		"auto_release_at": rec.AutoReleaseAt,
		"dispute_reason":  rec.DisputeReason,
		"resolution":      rec.Resolution,
		"updated_at":      rec.UpdatedAt,
		"closed_at":       rec.ClosedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *escrowHoldRepository) ListAutoReleasable(ctx context.Context, now time.Time, limit int) ([]domain.EscrowHold, error) {
	query := r.db.WithContext(ctx).
		Where("state = ? AND auto_release_at IS NOT NULL AND auto_release_at <= ?", string(domain.HoldStateHeld), now).
		Order("auto_release_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []escrowHoldModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.EscrowHold, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainHold(row))
	}
	return out, nil
}
