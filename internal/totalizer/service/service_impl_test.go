package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stationops/pims/internal/clock"
	"github.com/stationops/pims/internal/events"
	"github.com/stationops/pims/internal/migration"
	"github.com/stationops/pims/internal/plant"
	"github.com/stationops/pims/internal/totalizer/domain"
)

var testToday = time.Date(2026, time.April, 11, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) domain.Service {
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

	return NewService(ServiceParam{
		DB:     gdb,
		Log:    zap.NewNop(),
		GenID:  node,
		Master: domain.DefaultMaster(),
		Clock:  clock.FixedClock{T: testToday},
		Outbox: events.NewOutbox(gdb, node),
	})
}

func TestSubmitFirstDayDiffsFromZero(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	result, err := svc.Submit(ctx, domain.SubmitRequest{
		Date:  date,
		Scope: plant.ScopeUnit1,
		Readings: []domain.ReadingInput{
			{TotalizerID: 1, Value: 500},
			{TotalizerID: 6, Value: 12},
		},
		Author: "shift-a",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(result.Changed) != 2 {
		t.Fatalf("changed = %v, want 2 ids", result.Changed)
	}

	diffs, err := svc.Diffs(ctx, date)
	if err != nil {
		t.Fatalf("diffs: %v", err)
	}
	if diffs[plant.ScopeUnit1]["feeder_a"] != 500 {
		t.Fatalf("feeder_a diff = %v, want 500", diffs[plant.ScopeUnit1]["feeder_a"])
	}
	// Totalizers without a row diff to zero.
	if diffs[plant.ScopeUnit1]["feeder_b"] != 0 {
		t.Fatalf("feeder_b diff = %v, want 0", diffs[plant.ScopeUnit1]["feeder_b"])
	}
}

func TestSubmitDiffsFromYesterday(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	yesterday := time.Date(2026, time.April, 9, 0, 0, 0, 0, time.UTC)
	date := yesterday.AddDate(0, 0, 1)

	if _, err := svc.Submit(ctx, domain.SubmitRequest{
		Date:     yesterday,
		Scope:    plant.ScopeUnit1,
		Readings: []domain.ReadingInput{{TotalizerID: 1, Value: 500}},
		Author:   "shift-a",
	}); err != nil {
		t.Fatalf("submit yesterday: %v", err)
	}

	if _, err := svc.Submit(ctx, domain.SubmitRequest{
		Date:     date,
		Scope:    plant.ScopeUnit1,
		Readings: []domain.ReadingInput{{TotalizerID: 1, Value: 620}},
		Author:   "shift-b",
	}); err != nil {
		t.Fatalf("submit today: %v", err)
	}

	diffs, err := svc.Diffs(ctx, date)
	if err != nil {
		t.Fatalf("diffs: %v", err)
	}
	if diffs[plant.ScopeUnit1]["feeder_a"] != 120 {
		t.Fatalf("feeder_a diff = %v, want 120", diffs[plant.ScopeUnit1]["feeder_a"])
	}
}

func TestSubmitBaselineSubstitutesForYesterday(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	if err := svc.ConfigureBaseline(ctx, domain.Baseline{
		TotalizerID:   1,
		EffectiveDate: date,
		Value:         450,
		Reason:        "meter replaced",
		ConfiguredBy:  "admin",
	}); err != nil {
		t.Fatalf("configure baseline: %v", err)
	}

	if _, err := svc.Submit(ctx, domain.SubmitRequest{
		Date:     date,
		Scope:    plant.ScopeUnit1,
		Readings: []domain.ReadingInput{{TotalizerID: 1, Value: 500}},
		Author:   "shift-a",
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	diffs, err := svc.Diffs(ctx, date)
	if err != nil {
		t.Fatalf("diffs: %v", err)
	}
	if diffs[plant.ScopeUnit1]["feeder_a"] != 50 {
		t.Fatalf("feeder_a diff = %v, want 50", diffs[plant.ScopeUnit1]["feeder_a"])
	}

	baselines, err := svc.ListBaselines(ctx, 1)
	if err != nil {
		t.Fatalf("list baselines: %v", err)
	}
	if len(baselines) != 1 || baselines[0].Value != 450 {
		t.Fatalf("unexpected baselines %v", baselines)
	}
}

func TestBaselinePrecedence(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	// An older baseline still applies; the latest effective one wins.
	if err := svc.ConfigureBaseline(ctx, domain.Baseline{
		TotalizerID:   1,
		EffectiveDate: date.AddDate(0, 0, -5),
		Value:         400,
		ConfiguredBy:  "admin",
	}); err != nil {
		t.Fatalf("configure old baseline: %v", err)
	}
	if err := svc.ConfigureBaseline(ctx, domain.Baseline{
		TotalizerID:   1,
		EffectiveDate: date.AddDate(0, 0, -1),
		Value:         460,
		ConfiguredBy:  "admin",
	}); err != nil {
		t.Fatalf("configure new baseline: %v", err)
	}

	diffs, err := svc.PreviewDiffs(ctx, date, []domain.ReadingInput{
		{TotalizerID: 1, Value: 500},
	})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if diffs[plant.ScopeUnit1]["feeder_a"] != 40 {
		t.Fatalf("feeder_a diff = %v, want 40", diffs[plant.ScopeUnit1]["feeder_a"])
	}

	// A stored reading for yesterday beats any baseline.
	if _, err := svc.Submit(ctx, domain.SubmitRequest{
		Date:     date.AddDate(0, 0, -1),
		Scope:    plant.ScopeUnit1,
		Readings: []domain.ReadingInput{{TotalizerID: 1, Value: 480}},
		Author:   "shift-a",
	}); err != nil {
		t.Fatalf("submit yesterday: %v", err)
	}
	diffs, err = svc.PreviewDiffs(ctx, date, []domain.ReadingInput{
		{TotalizerID: 1, Value: 500},
	})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if diffs[plant.ScopeUnit1]["feeder_a"] != 20 {
		t.Fatalf("feeder_a diff = %v, want 20", diffs[plant.ScopeUnit1]["feeder_a"])
	}
}

func TestSubmitIdenticalResubmitReportsNoChange(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	req := domain.SubmitRequest{
		Date:     date,
		Scope:    plant.ScopeUnit1,
		Readings: []domain.ReadingInput{{TotalizerID: 1, Value: 500}},
		Author:   "shift-a",
	}
	if _, err := svc.Submit(ctx, req); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	result, err := svc.Submit(ctx, req)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if len(result.Changed) != 0 {
		t.Fatalf("resubmit changed = %v, want none", result.Changed)
	}
}

func TestSubmitAdjustRequiresPrivilege(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)
	adjust := 5.0

	// A plain operator's adjustment is zeroed, the reading still lands.
	result, err := svc.Submit(ctx, domain.SubmitRequest{
		Date:     date,
		Scope:    plant.ScopeUnit1,
		Readings: []domain.ReadingInput{{TotalizerID: 1, Value: 500, AdjustValue: &adjust}},
		Author:   "shift-a",
	})
	if err != nil {
		t.Fatalf("unprivileged submit: %v", err)
	}
	if len(result.Changed) != 1 {
		t.Fatalf("changed = %v, want [1]", result.Changed)
	}

	diffs, err := svc.Diffs(ctx, date)
	if err != nil {
		t.Fatalf("diffs: %v", err)
	}
	if diffs[plant.ScopeUnit1]["feeder_a"] != 500 {
		t.Fatalf("feeder_a diff = %v, want 500 with adjust zeroed", diffs[plant.ScopeUnit1]["feeder_a"])
	}

	result, err = svc.Submit(ctx, domain.SubmitRequest{
		Date:       date,
		Scope:      plant.ScopeUnit1,
		Readings:   []domain.ReadingInput{{TotalizerID: 1, Value: 500, AdjustValue: &adjust}},
		Author:     "admin",
		Privileged: true,
	})
	if err != nil {
		t.Fatalf("privileged submit: %v", err)
	}
	if len(result.Changed) != 1 {
		t.Fatalf("changed = %v, want [1]", result.Changed)
	}

	diffs, err = svc.Diffs(ctx, date)
	if err != nil {
		t.Fatalf("diffs: %v", err)
	}
	if diffs[plant.ScopeUnit1]["feeder_a"] != 505 {
		t.Fatalf("feeder_a diff = %v, want 505", diffs[plant.ScopeUnit1]["feeder_a"])
	}
}

func TestSubmitValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		req  domain.SubmitRequest
		want error
	}{
		{
			name: "future date",
			req: domain.SubmitRequest{
				Date:     testToday.AddDate(0, 0, 1),
				Scope:    plant.ScopeUnit1,
				Readings: []domain.ReadingInput{{TotalizerID: 1, Value: 1}},
			},
			want: domain.ErrInvalidDate,
		},
		{
			name: "bad scope",
			req: domain.SubmitRequest{
				Date:     date,
				Scope:    "Unit-9",
				Readings: []domain.ReadingInput{{TotalizerID: 1, Value: 1}},
			},
			want: domain.ErrInvalidScope,
		},
		{
			name: "unknown totalizer",
			req: domain.SubmitRequest{
				Date:     date,
				Scope:    plant.ScopeUnit1,
				Readings: []domain.ReadingInput{{TotalizerID: 99, Value: 1}},
			},
			want: domain.ErrUnknownTotalizer,
		},
		{
			name: "scope mismatch",
			req: domain.SubmitRequest{
				Date:     date,
				Scope:    plant.ScopeUnit1,
				Readings: []domain.ReadingInput{{TotalizerID: 11, Value: 1}},
			},
			want: domain.ErrInvalidScope,
		},
		{
			name: "negative value",
			req: domain.SubmitRequest{
				Date:     date,
				Scope:    plant.ScopeUnit1,
				Readings: []domain.ReadingInput{{TotalizerID: 1, Value: -1}},
			},
			want: domain.ErrInvalidReading,
		},
	}

	for _, tc := range cases {
		if _, err := svc.Submit(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestPreviewDiffsDoesNotPersist(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	diffs, err := svc.PreviewDiffs(ctx, date, []domain.ReadingInput{
		{TotalizerID: 1, Value: 300},
	})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if diffs[plant.ScopeUnit1]["feeder_a"] != 300 {
		t.Fatalf("preview diff = %v, want 300", diffs[plant.ScopeUnit1]["feeder_a"])
	}

	rows, err := svc.ListReadings(ctx, plant.ScopeUnit1, date)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("preview persisted %d rows", len(rows))
	}
}
