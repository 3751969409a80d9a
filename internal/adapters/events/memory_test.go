package events

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/viralforge/revenue-ledger/internal/contracts"
)

func TestMemoryConsumerDrains(t *testing.T) {
	t.Parallel()
	consumer := NewMemoryConsumer()
	consumer.Seed([]contracts.EventEnvelope{
		{EventID: "ev-1", EventType: "revenue.entry.recorded"},
		{EventID: "ev-2", EventType: "payout.paid"},
	})

	first, err := consumer.Receive(context.Background())
	if err != nil || first.EventID != "ev-1" {
		t.Fatalf("first Receive = (%v, %v)", first, err)
	}
	second, err := consumer.Receive(context.Background())
	if err != nil || second.EventID != "ev-2" {
		t.Fatalf("second Receive = (%v, %v)", second, err)
	}
	if _, err := consumer.Receive(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("drained Receive = %v, want io.EOF", err)
	}
}

func TestMemoryPublishersAccumulate(t *testing.T) {
	t.Parallel()
	dom := NewMemoryDomainPublisher()
	analytics := NewMemoryAnalyticsPublisher()

	if err := dom.PublishDomain(context.Background(), contracts.EventEnvelope{EventID: "d-1"}); err != nil {
		t.Fatalf("PublishDomain: %v", err)
	}
	if err := analytics.PublishAnalytics(context.Background(), contracts.EventEnvelope{EventID: "a-1"}); err != nil {
		t.Fatalf("PublishAnalytics: %v", err)
	}
	if got := dom.Events(); len(got) != 1 || got[0].EventID != "d-1" {
		t.Fatalf("domain events = %+v", got)
	}
	if got := analytics.Events(); len(got) != 1 || got[0].EventID != "a-1" {
		t.Fatalf("analytics events = %+v", got)
	}

	// Events() hands out copies.
	snapshot := dom.Events()
	snapshot[0].EventID = "mutated"
	if dom.Events()[0].EventID != "d-1" {
		t.Fatal("Events() exposed internal state")
	}
}
