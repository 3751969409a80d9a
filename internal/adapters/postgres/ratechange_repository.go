package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/viralforge/revenue-ledger/internal/domain"
	"gorm.io/gorm"
)

type rateChangeRepository struct {
	db *gorm.DB
}

func (r *rateChangeRepository) Create(ctx context.Context, change domain.RateChange) error {
	rec := rateChangeModel{
		ChangeID:    change.ChangeID,
		Channel:     string(change.Channel),
		RateBPS:     change.Rate.BasisPoints(),
		EffectiveAt: change.EffectiveAt,
		Signature:   change.Signature,
		CreatedAt:   change.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *rateChangeRepository) ActiveRate(ctx context.Context, channel domain.Channel, at time.Time) (domain.Rate, bool, error) {
	var rec rateChangeModel
	err := r.db.WithContext(ctx).
		Where("channel = ? AND effective_at <= ?", string(channel), at).
		Order("effective_at desc").
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return domain.Rate(rec.RateBPS), true, nil
}

func (r *rateChangeRepository) List(ctx context.Context, channel domain.Channel) ([]domain.RateChange, error) {
	var rows []rateChangeModel
	if err := r.db.WithContext(ctx).Where("channel = ?", string(channel)).Order("effective_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RateChange, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.RateChange{
			ChangeID:    row.ChangeID,
			Channel:     domain.Channel(row.Channel),
			Rate:        domain.Rate(row.RateBPS),
			EffectiveAt: row.EffectiveAt,
			Signature:   row.Signature,
			CreatedAt:   row.CreatedAt,
		})
	}
	return out, nil
}
