package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/viralforge/revenue-ledger/internal/contracts"
	"github.com/viralforge/revenue-ledger/internal/ports"
	"gorm.io/gorm"
)

type outboxRepository struct {
	db *gorm.DB
}

func (r *outboxRepository) Enqueue(ctx context.Context, record ports.OutboxRecord) error {
	raw, err := json.Marshal(record.Envelope)
	if err != nil {
		return err
	}
	rec := outboxModel{
		RecordID:   record.RecordID,
		EventClass: record.EventClass,
		Envelope:   string(raw),
		Attempts:   record.Attempts,
		CreatedAt:  record.CreatedAt,
		SentAt:     record.SentAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *outboxRepository) ListPending(ctx context.Context, limit int) ([]ports.OutboxRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	err := r.db.WithContext(ctx).
		Where("sent_at IS NULL").
		Order("created_at asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]ports.OutboxRecord, 0, len(rows))
	for _, row := range rows {
		var envelope contracts.EventEnvelope
		if err := json.Unmarshal([]byte(row.Envelope), &envelope); err != nil {
			continue
		}
		out = append(out, ports.OutboxRecord{
			RecordID:   row.RecordID,
			EventClass: row.EventClass,
			Envelope:   envelope,
			Attempts:   row.Attempts,
			CreatedAt:  row.CreatedAt,
			SentAt:     row.SentAt,
		})
	}
	return out, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, recordID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&outboxModel{}).Where("record_id = ?", recordID).Update("sent_at", at).Error
}

func (r *outboxRepository) MarkFailed(ctx context.Context, recordID string, _ time.Time) error {
	return r.db.WithContext(ctx).Model(&outboxModel{}).Where("record_id = ?", recordID).
		Update("attempts", gorm.Expr("attempts + 1")).Error
}
