package events

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stationops/pims/internal/migration"
)

func newTestOutbox(t *testing.T) (*Outbox, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migration.Apply(context.Background(), gdb, zap.NewNop()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return NewOutbox(gdb, node), gdb
}

func countEvents(t *testing.T, gdb *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := gdb.Table("plant_events").Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return count
}

func TestPublishStoresEvent(t *testing.T) {
	outbox, gdb := newTestOutbox(t)
	ctx := context.Background()

	err := outbox.Publish(ctx, Event{
		Type:    EventReadingsSubmitted,
		Payload: map[string]any{"date": "2026-04-10", "count": 5},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := countEvents(t, gdb); got != 1 {
		t.Fatalf("events = %d, want 1", got)
	}

	pending, err := outbox.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if pending != 1 {
		t.Fatalf("pending = %d, want 1", pending)
	}
}

func TestPublishDedupeKeySuppressesDuplicates(t *testing.T) {
	outbox, gdb := newTestOutbox(t)
	ctx := context.Background()

	event := Event{
		Type:      EventOutageRecorded,
		Payload:   map[string]any{"outage_id": "42"},
		DedupeKey: "outage.recorded:42",
	}
	if err := outbox.Publish(ctx, event); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := outbox.Publish(ctx, event); err != nil {
		t.Fatalf("duplicate publish: %v", err)
	}
	if got := countEvents(t, gdb); got != 1 {
		t.Fatalf("events = %d, want 1 after dedupe", got)
	}
}

func TestPublishWithoutDedupeKeyAlwaysInserts(t *testing.T) {
	outbox, gdb := newTestOutbox(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := outbox.Publish(ctx, Event{
			Type:    EventKPIUpdated,
			Payload: map[string]any{"updated": i},
		}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if got := countEvents(t, gdb); got != 2 {
		t.Fatalf("events = %d, want 2", got)
	}
}

func TestPublishRejectsEmptyType(t *testing.T) {
	outbox, _ := newTestOutbox(t)

	if err := outbox.Publish(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error for empty event type")
	}
}
