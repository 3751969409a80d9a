package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/viralforge/revenue-ledger/internal/domain"
	"github.com/viralforge/revenue-ledger/internal/ports"
	"gorm.io/gorm"
)

type ledgerRepository struct {
	db *gorm.DB
}

func (r *ledgerRepository) Append(ctx context.Context, entry domain.LedgerEntry) error {
	rec := toLedgerEntryModel(entry)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *ledgerRepository) GetByID(ctx context.Context, entryID string) (domain.LedgerEntry, error) {
	var rec ledgerEntryModel
	if err := r.db.WithContext(ctx).Where("entry_id = ?", entryID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.LedgerEntry{}, domain.ErrNotFound
		}
		return domain.LedgerEntry{}, err
	}
	return toDomainEntry(rec), nil
}

func (r *ledgerRepository) FindActiveBySourceRef(ctx context.Context, sourceRef string, channel domain.Channel) (domain.LedgerEntry, error) {
	var rec ledgerEntryModel
	err := r.db.WithContext(ctx).
		Where("source_ref = ? AND channel = ? AND status <> ?", sourceRef, string(channel), string(domain.EntryStatusReversed)).
		Order("created_at asc").
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.LedgerEntry{}, domain.ErrNotFound
		}
		return domain.LedgerEntry{}, err
	}
	return toDomainEntry(rec), nil
}

func (r *ledgerRepository) ListByCreator(ctx context.Context, creatorID string, filter ports.EntryFilter) ([]domain.LedgerEntry, error) {
	query := r.db.WithContext(ctx).Where("creator_id = ?", creatorID)
	if filter.Channel != "" {
		query = query.Where("channel = ?", string(filter.Channel))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if !filter.From.IsZero() {
		query = query.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("created_at <= ?", filter.To)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var rows []ledgerEntryModel
	if err := query.Order("created_at desc").Offset(filter.Offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainEntry(row))
	}
	return out, nil
}

func (r *ledgerRepository) UpdateStatus(ctx context.Context, entryID string, from, to domain.EntryStatus, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&ledgerEntryModel{}).
		Where("entry_id = ? AND status = ?", entryID, string(from)).
		Update("status", string(to))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&ledgerEntryModel{}).Where("entry_id = ?", entryID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrInvalidStateTransition
	}
	_ = at
	return nil
}

func (r *ledgerRepository) ListMatured(ctx context.Context, now time.Time, limit int) ([]domain.LedgerEntry, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND available_at <= ?", string(domain.EntryStatusPending), now).
		Order("available_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []ledgerEntryModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainEntry(row))
	}
	return out, nil
}
