package domain

import (
	"fmt"
	"time"
)

// CompleteStreamSeconds is the minimum listen duration for a stream to count
// toward royalties.
const CompleteStreamSeconds = 30

// DefaultRatePer1KMinor is the payable rate per 1000 completed streams, in
// minor units of the platform currency (400 = 0.004 per stream).
const DefaultRatePer1KMinor = 400

// StreamRecord is one play of a track. Completeness is fixed at ingestion
// time from the listened duration.
type StreamRecord struct {
	StreamID        string    `json:"stream_id"`
	TrackID         string    `json:"track_id"`
	CreatorID       string    `json:"creator_id"`
	ListenerID      string    `json:"listener_id"`
	DurationSeconds int       `json:"duration_seconds"`
	IsComplete      bool      `json:"is_complete"`
	StreamedAt      time.Time `json:"streamed_at"`
}

// RoyaltyPeriod is the closed aggregation of one track's completed streams
// over a bounded window. (TrackID, PeriodStart, PeriodEnd) is the idempotency
// key: closing the same period twice produces no second entry.
type RoyaltyPeriod struct {
	TrackID      string    `json:"track_id"`
	CreatorID    string    `json:"creator_id"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
	TotalStreams int64     `json:"total_streams"`
	RatePer1K    Money     `json:"rate_per_1k"`
	Gross        Money     `json:"gross_amount"`
	EntryID      string    `json:"entry_id"`
	ClosedAt     time.Time `json:"closed_at"`
}

// RoyaltyGross computes streams x rate with the rate expressed per 1000
// streams, rounding to the nearest minor unit, ties away from zero.
func RoyaltyGross(totalStreams int64, ratePer1K Money) Money {
	if totalStreams < 0 || ratePer1K.Amount < 0 {
		return Money{Currency: ratePer1K.Currency}
	}
	num := totalStreams * ratePer1K.Amount
	quo := num / 1000
	if (num%1000)*2 >= 1000 {
		quo++
	}
	return Money{Amount: quo, Currency: ratePer1K.Currency}
}

// RoyaltySourceRef is the ledger idempotency reference for a (track, period)
// posting.
func RoyaltySourceRef(trackID string, periodStart, periodEnd time.Time) string {
	return fmt.Sprintf("royalty:%s:%d:%d", trackID, periodStart.UTC().Unix(), periodEnd.UTC().Unix())
}
