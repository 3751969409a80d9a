package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/viralforge/revenue-ledger/internal/domain"
	"github.com/viralforge/revenue-ledger/internal/ports"
	"gorm.io/gorm"
)

type streamRepository struct {
	db *gorm.DB
}

func (r *streamRepository) Record(ctx context.Context, stream domain.StreamRecord) error {
	rec := streamModel{
		StreamID:        stream.StreamID,
		TrackID:         stream.TrackID,
		CreatorID:       stream.CreatorID,
		ListenerID:      stream.ListenerID,
		DurationSeconds: stream.DurationSeconds,
		IsComplete:      stream.IsComplete,
		StreamedAt:      stream.StreamedAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *streamRepository) CountCompleted(ctx context.Context, trackID string, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&streamModel{}).
		Where("track_id = ? AND is_complete AND streamed_at >= ? AND streamed_at < ?", trackID, from, to).
		Count(&count).Error
	return count, err
}

func (r *streamRepository) TracksWithCompleted(ctx context.Context, from, to time.Time) ([]ports.TrackActivity, error) {
	var rows []struct {
		TrackID   string
		CreatorID string
	}
	err := r.db.WithContext(ctx).Model(&streamModel{}).
		Select("track_id, creator_id").
		Where("is_complete AND streamed_at >= ? AND streamed_at < ?", from, to).
		Group("track_id, creator_id").
		Order("track_id asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]ports.TrackActivity, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.TrackActivity{TrackID: row.TrackID, CreatorID: row.CreatorID})
	}
	return out, nil
}

type royaltyPeriodRepository struct {
	db *gorm.DB
}

func (r *royaltyPeriodRepository) Create(ctx context.Context, period domain.RoyaltyPeriod) error {
	rec := toRoyaltyPeriodModel(period)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *royaltyPeriodRepository) Get(ctx context.Context, trackID string, periodStart, periodEnd time.Time) (domain.RoyaltyPeriod, error) {
	var rec royaltyPeriodModel
	err := r.db.WithContext(ctx).
		Where("track_id = ? AND period_start = ? AND period_end = ?", trackID, periodStart, periodEnd).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RoyaltyPeriod{}, domain.ErrNotFound
		}
		return domain.RoyaltyPeriod{}, err
	}
	return toDomainRoyaltyPeriod(rec), nil
}

func (r *royaltyPeriodRepository) ListByCreator(ctx context.Context, creatorID string, limit int) ([]domain.RoyaltyPeriod, error) {
	query := r.db.WithContext(ctx).Where("creator_id = ?", creatorID).Order("period_start desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []royaltyPeriodModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RoyaltyPeriod, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainRoyaltyPeriod(row))
	}
	return out, nil
}
