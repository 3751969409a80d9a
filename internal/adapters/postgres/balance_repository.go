package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/viralforge/revenue-ledger/internal/domain"
	"github.com/viralforge/revenue-ledger/internal/ports"
	"gorm.io/gorm"
)

type balanceRepository struct {
	db *gorm.DB
}

func (r *balanceRepository) Get(ctx context.Context, creatorID, currency string) (ports.BalanceSnapshot, error) {
	var rec balanceModel
	err := r.db.WithContext(ctx).Where("creator_id = ? AND currency = ?", creatorID, currency).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.BalanceSnapshot{CreatorID: creatorID, Currency: currency}, nil
		}
		return ports.BalanceSnapshot{}, err
	}
	return ports.BalanceSnapshot{
		CreatorID: rec.CreatorID,
		Currency:  rec.Currency,
		Available: rec.AvailableMinor,
		Pending:   rec.PendingMinor,
		Withheld:  rec.WithheldMinor,
		Reserved:  rec.ReservedMinor,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

func (r *balanceRepository) ApplyDelta(ctx context.Context, creatorID, currency string, delta ports.BalanceDelta, at time.Time) error {
	return r.db.WithContext(ctx).Exec(`
INSERT INTO balances (creator_id, currency, available_minor, pending_minor, withheld_minor, reserved_minor, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (creator_id, currency) DO UPDATE SET
  available_minor = balances.available_minor + EXCLUDED.available_minor,
  pending_minor   = balances.pending_minor + EXCLUDED.pending_minor,
  withheld_minor  = balances.withheld_minor + EXCLUDED.withheld_minor,
  reserved_minor  = balances.reserved_minor + EXCLUDED.reserved_minor,
  updated_at      = EXCLUDED.updated_at
`, creatorID, currency, delta.Available, delta.Pending, delta.Withheld, delta.Reserved, at).Error
}

func (r *balanceRepository) ChannelTotals(ctx context.Context, creatorID string) ([]ports.ChannelTotal, error) {
	var rows []channelTotalModel
	if err := r.db.WithContext(ctx).Where("creator_id = ?", creatorID).Order("channel asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ports.ChannelTotal, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.ChannelTotal{
			CreatorID:  row.CreatorID,
			Channel:    domain.Channel(row.Channel),
			Currency:   row.Currency,
			GrossTotal: row.GrossTotal,
			NetTotal:   row.NetTotal,
			EntryCount: row.EntryCount,
		})
	}
	return out, nil
}

func (r *balanceRepository) AddChannelTotal(ctx context.Context, creatorID string, channel domain.Channel, currency string, gross, net, entries int64) error {
	return r.db.WithContext(ctx).Exec(`
INSERT INTO channel_totals (creator_id, channel, currency, gross_total_minor, net_total_minor, entry_count)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (creator_id, channel, currency) DO UPDATE SET
  gross_total_minor = channel_totals.gross_total_minor + EXCLUDED.gross_total_minor,
  net_total_minor   = channel_totals.net_total_minor + EXCLUDED.net_total_minor,
  entry_count       = channel_totals.entry_count + EXCLUDED.entry_count
`, creatorID, string(channel), currency, gross, net, entries).Error
}
