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

	"github.com/stationops/pims/internal/cache"
	"github.com/stationops/pims/internal/clock"
	"github.com/stationops/pims/internal/events"
	"github.com/stationops/pims/internal/kpi/aggregate"
	"github.com/stationops/pims/internal/kpi/depend"
	"github.com/stationops/pims/internal/kpi/domain"
	"github.com/stationops/pims/internal/kpi/registry"
	"github.com/stationops/pims/internal/migration"
	outageservice "github.com/stationops/pims/internal/outage/service"
	"github.com/stationops/pims/internal/plant"
	totalizerdomain "github.com/stationops/pims/internal/totalizer/domain"
	totalizerservice "github.com/stationops/pims/internal/totalizer/service"
)

var testToday = time.Date(2026, time.April, 20, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db        *gorm.DB
	kpi       domain.Service
	totalizer totalizerdomain.Service
}

func newFixture(t *testing.T) *fixture {
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

	log := zap.NewNop()
	outbox := events.NewOutbox(gdb, node)
	fixed := clock.FixedClock{T: testToday}

	totalizerSvc := totalizerservice.NewService(totalizerservice.ServiceParam{
		DB:     gdb,
		Log:    log,
		GenID:  node,
		Master: totalizerdomain.DefaultMaster(),
		Clock:  fixed,
		Outbox: outbox,
	})
	outageSvc := outageservice.NewService(outageservice.ServiceParam{
		DB:     gdb,
		Log:    log,
		GenID:  node,
		Outbox: outbox,
	})

	kpiSvc := NewService(ServiceParam{
		DB:           gdb,
		Log:          log,
		GenID:        node,
		PlantCfg:     plant.Default(),
		Clock:        fixed,
		Master:       totalizerdomain.DefaultMaster(),
		TotalizerSvc: totalizerSvc,
		OutageSvc:    outageSvc,
		Graph:        depend.Default(),
		Aggregator:   aggregate.New(registry.Default(), log, nil),
		DayCache:     cache.NewDayCache(),
		Outbox:       outbox,
	})

	return &fixture{db: gdb, kpi: kpiSvc, totalizer: totalizerSvc}
}

func (f *fixture) submit(t *testing.T, date time.Time, scope plant.Scope, readings []totalizerdomain.ReadingInput) []int {
	t.Helper()
	result, err := f.totalizer.Submit(context.Background(), totalizerdomain.SubmitRequest{
		Date:     date,
		Scope:    scope,
		Readings: readings,
		Author:   "shift-a",
	})
	if err != nil {
		t.Fatalf("submit readings: %v", err)
	}
	return result.Changed
}

func (f *fixture) recordValue(t *testing.T, date time.Time, kind string, scope plant.Scope, name string) (float64, bool) {
	t.Helper()
	var row domain.Record
	err := f.db.
		Where("report_date = ? AND kind = ? AND scope = ? AND name = ?", date, kind, scope, name).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false
	}
	if err != nil {
		t.Fatalf("load record %s/%s: %v", scope, name, err)
	}
	return row.Value, true
}

func TestRecomputePersistsDerivedDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	f.submit(t, date, plant.ScopeUnit1, []totalizerdomain.ReadingInput{
		{TotalizerID: 1, Value: 100},
		{TotalizerID: 2, Value: 120},
		{TotalizerID: 3, Value: 90},
		{TotalizerID: 4, Value: 110},
		{TotalizerID: 5, Value: 80},
	})
	f.submit(t, date, plant.ScopeEnergyMeter, []totalizerdomain.ReadingInput{
		{TotalizerID: 22, Value: 400},
	})

	updated, err := f.kpi.Recompute(ctx, date, nil, "shift-a")
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if updated == 0 {
		t.Fatalf("expected records to be written")
	}

	coal, ok := f.recordValue(t, date, domain.KindAuto, plant.ScopeUnit1, "coal_consumption")
	if !ok || coal != 500 {
		t.Fatalf("coal_consumption = %v (present=%v), want 500", coal, ok)
	}
	specific, ok := f.recordValue(t, date, domain.KindAuto, plant.ScopeUnit1, "specific_coal")
	if !ok || specific != 1.25 {
		t.Fatalf("specific_coal = %v (present=%v), want 1.25", specific, ok)
	}
	stationCoal, ok := f.recordValue(t, date, domain.KindAuto, plant.ScopeStation, "coal_consumption")
	if !ok || stationCoal != 500 {
		t.Fatalf("station coal = %v (present=%v), want 500", stationCoal, ok)
	}
}

func TestRecomputePersistsEnergyRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	f.submit(t, date, plant.ScopeEnergyMeter, []totalizerdomain.ReadingInput{
		{TotalizerID: 22, Value: 400},
		{TotalizerID: 28, Value: 260},
		{TotalizerID: 32, Value: 52},
		{TotalizerID: 36, Value: 18},
		{TotalizerID: 37, Value: 5},
		{TotalizerID: 38, Value: 6},
	})
	if _, err := f.kpi.Recompute(ctx, date, []int{22, 28, 32, 36, 37, 38}, "shift-a"); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	// rlsr01 − 1lsr01 tie + UST_25, with SST_10 and UST_15 counted twice:
	// 260 − 52 + 2×18 + 2×5 + 6 = 260.
	aux, ok := f.recordValue(t, date, domain.KindEnergy, plant.ScopeStation, "total_station_aux_mwh")
	if !ok {
		t.Fatalf("total_station_aux_mwh energy record missing")
	}
	if aux != 260 {
		t.Fatalf("total_station_aux_mwh = %v, want 260", aux)
	}
	gen, ok := f.recordValue(t, date, domain.KindEnergy, plant.ScopeStation, "unit1_generation")
	if !ok || gen != 400 {
		t.Fatalf("unit1_generation = %v (present=%v), want 400", gen, ok)
	}
}

func TestRecomputeSkipsEnergyWhenNoMeterChanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	f.submit(t, date, plant.ScopeUnit1, []totalizerdomain.ReadingInput{
		{TotalizerID: 6, Value: 10},
	})
	if _, err := f.kpi.Recompute(ctx, date, []int{6}, "shift-a"); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	if _, ok := f.recordValue(t, date, domain.KindEnergy, plant.ScopeStation, "total_station_aux_mwh"); ok {
		t.Fatalf("energy record written without an energy meter change")
	}
}

func TestRecomputeScopesWritesToAffectedKPIs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	f.submit(t, date, plant.ScopeUnit1, []totalizerdomain.ReadingInput{
		{TotalizerID: 1, Value: 100},
		{TotalizerID: 6, Value: 10},
	})

	// Only the oil meter changed: coal indicators must stay unwritten.
	changed := []int{6}
	if _, err := f.kpi.Recompute(ctx, date, changed, "shift-a"); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	if _, ok := f.recordValue(t, date, domain.KindAuto, plant.ScopeUnit1, "oil_consumption"); !ok {
		t.Fatalf("oil_consumption should have been written")
	}
	if _, ok := f.recordValue(t, date, domain.KindAuto, plant.ScopeUnit1, "coal_consumption"); ok {
		t.Fatalf("coal_consumption written outside the affected set")
	}
}

func TestRecomputeEpsilonSkipsUnchangedValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	f.submit(t, date, plant.ScopeUnit1, []totalizerdomain.ReadingInput{
		{TotalizerID: 1, Value: 100},
	})
	if _, err := f.kpi.Recompute(ctx, date, nil, "shift-a"); err != nil {
		t.Fatalf("first recompute: %v", err)
	}

	updated, err := f.kpi.Recompute(ctx, date, nil, "shift-a")
	if err != nil {
		t.Fatalf("second recompute: %v", err)
	}
	if updated != 0 {
		t.Fatalf("second recompute updated %d records, want 0", updated)
	}
}

func TestPreviewDoesNotPersist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	kpis, err := f.kpi.Preview(ctx, date, []totalizerdomain.ReadingInput{
		{TotalizerID: 1, Value: 250},
	})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if kpis[plant.ScopeUnit1]["coal_consumption"] != 250 {
		t.Fatalf("preview coal = %v, want 250", kpis[plant.ScopeUnit1]["coal_consumption"])
	}

	var count int64
	if err := f.db.Model(&domain.Record{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("preview persisted %d records", count)
	}
}

func TestReportAggregatesMonthToDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	day1 := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	f.submit(t, day1, plant.ScopeEnergyMeter, []totalizerdomain.ReadingInput{
		{TotalizerID: 22, Value: 4000},
	})
	if _, err := f.kpi.Recompute(ctx, day1, nil, "shift-a"); err != nil {
		t.Fatalf("recompute day1: %v", err)
	}

	f.submit(t, day2, plant.ScopeEnergyMeter, []totalizerdomain.ReadingInput{
		{TotalizerID: 22, Value: 7000},
	})
	if _, err := f.kpi.Recompute(ctx, day2, nil, "shift-a"); err != nil {
		t.Fatalf("recompute day2: %v", err)
	}

	report, err := f.kpi.Report(ctx, day2)
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	if report.Day[plant.ScopeUnit1]["generation"] != 3000 {
		t.Fatalf("day generation = %v, want 3000", report.Day[plant.ScopeUnit1]["generation"])
	}
	if report.Month[plant.ScopeUnit1]["generation"] != 7000 {
		t.Fatalf("month generation = %v, want 7000", report.Month[plant.ScopeUnit1]["generation"])
	}
	// April starts the fiscal year, so month and year match here.
	if report.Year[plant.ScopeUnit1]["generation"] != 7000 {
		t.Fatalf("year generation = %v, want 7000", report.Year[plant.ScopeUnit1]["generation"])
	}
}

func TestManualRecordOverridesAutoInReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	f.submit(t, date, plant.ScopeUnit1, []totalizerdomain.ReadingInput{
		{TotalizerID: 1, Value: 100},
	})
	if _, err := f.kpi.Recompute(ctx, date, nil, "shift-a"); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	if err := f.kpi.SubmitManual(ctx, domain.SubmitManualRequest{
		Date: date,
		Entries: []domain.ManualEntry{
			{Scope: plant.ScopeUnit1, Name: "coal_consumption", Value: 123},
			{Scope: plant.ScopeUnit1, Name: "gcv", Value: 4200},
		},
		Author: "chemist",
	}); err != nil {
		t.Fatalf("submit manual: %v", err)
	}

	report, err := f.kpi.Report(ctx, date)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Day[plant.ScopeUnit1]["coal_consumption"] != 123 {
		t.Fatalf("manual override = %v, want 123", report.Day[plant.ScopeUnit1]["coal_consumption"])
	}
	if report.Day[plant.ScopeUnit1]["gcv"] != 4200 {
		t.Fatalf("gcv = %v, want 4200", report.Day[plant.ScopeUnit1]["gcv"])
	}

	// The auto record is untouched underneath.
	auto, ok := f.recordValue(t, date, domain.KindAuto, plant.ScopeUnit1, "coal_consumption")
	if !ok || auto != 100 {
		t.Fatalf("auto record = %v (present=%v), want 100", auto, ok)
	}
}

func TestOffsetsFoldIntoReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	f.submit(t, date, plant.ScopeEnergyMeter, []totalizerdomain.ReadingInput{
		{TotalizerID: 22, Value: 4000},
	})
	if _, err := f.kpi.Recompute(ctx, date, nil, "shift-a"); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	if _, err := f.kpi.ConfigureOffset(ctx, domain.ConfigureOffsetRequest{
		PeriodType:   domain.PeriodMonth,
		PeriodStart:  date,
		Scope:        plant.ScopeUnit1,
		Name:         "generation",
		Value:        1500,
		Reason:       "pre-cutover history",
		ConfiguredBy: "admin",
	}); err != nil {
		t.Fatalf("configure offset: %v", err)
	}

	report, err := f.kpi.Report(ctx, date)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Month[plant.ScopeUnit1]["generation"] != 5500 {
		t.Fatalf("month generation = %v, want 5500", report.Month[plant.ScopeUnit1]["generation"])
	}
	// The day figure stays untouched.
	if report.Day[plant.ScopeUnit1]["generation"] != 4000 {
		t.Fatalf("day generation = %v, want 4000", report.Day[plant.ScopeUnit1]["generation"])
	}
}

func TestOffsetLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	offset, err := f.kpi.ConfigureOffset(ctx, domain.ConfigureOffsetRequest{
		PeriodType:   domain.PeriodYear,
		PeriodStart:  date,
		Scope:        plant.ScopeStation,
		Name:         "coal_consumption",
		Value:        9000,
		ConfiguredBy: "admin",
	})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}

	// Reconfiguring the same period/scope/name replaces the value.
	updated, err := f.kpi.ConfigureOffset(ctx, domain.ConfigureOffsetRequest{
		PeriodType:   domain.PeriodYear,
		PeriodStart:  date,
		Scope:        plant.ScopeStation,
		Name:         "coal_consumption",
		Value:        9500,
		ConfiguredBy: "admin",
	})
	if err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if updated.Value != 9500 {
		t.Fatalf("value = %v, want 9500", updated.Value)
	}
	if updated.ID != offset.ID {
		t.Fatalf("reconfigure must update in place, got new id %v", updated.ID)
	}

	rows, err := f.kpi.ListOffsets(ctx, domain.PeriodYear, date)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("offsets = %d, want 1", len(rows))
	}

	if err := f.kpi.DeleteOffset(ctx, int64(offset.ID)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.kpi.DeleteOffset(ctx, int64(offset.ID)); !errors.Is(err, domain.ErrOffsetNotFound) {
		t.Fatalf("expected ErrOffsetNotFound, got %v", err)
	}
}

func TestConfigureOffsetPeriodEndAndSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	// Without an explicit end the period's last day is derived.
	offset, err := f.kpi.ConfigureOffset(ctx, domain.ConfigureOffsetRequest{
		PeriodType:   domain.PeriodMonth,
		PeriodStart:  date,
		Scope:        plant.ScopeUnit1,
		Name:         "generation",
		Value:        1500,
		Source:       "legacy dpr sheets",
		ConfiguredBy: "admin",
	})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	wantEnd := time.Date(2026, time.April, 30, 0, 0, 0, 0, time.UTC)
	if !offset.PeriodEnd.Equal(wantEnd) {
		t.Fatalf("period_end = %v, want %v", offset.PeriodEnd, wantEnd)
	}
	if offset.Source != "legacy dpr sheets" {
		t.Fatalf("source = %q, want legacy dpr sheets", offset.Source)
	}

	// An explicit end sticks.
	mid := time.Date(2026, time.April, 15, 0, 0, 0, 0, time.UTC)
	offset, err = f.kpi.ConfigureOffset(ctx, domain.ConfigureOffsetRequest{
		PeriodType:   domain.PeriodMonth,
		PeriodStart:  date,
		PeriodEnd:    mid,
		Scope:        plant.ScopeUnit1,
		Name:         "generation",
		Value:        1500,
		ConfiguredBy: "admin",
	})
	if err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if !offset.PeriodEnd.Equal(mid) {
		t.Fatalf("period_end = %v, want %v", offset.PeriodEnd, mid)
	}

	if _, err := f.kpi.ConfigureOffset(ctx, domain.ConfigureOffsetRequest{
		PeriodType:   domain.PeriodMonth,
		PeriodStart:  date,
		PeriodEnd:    date.AddDate(0, -1, 0),
		Scope:        plant.ScopeUnit1,
		Name:         "generation",
		Value:        1500,
		ConfiguredBy: "admin",
	}); !errors.Is(err, domain.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod for end before start, got %v", err)
	}
}

func TestConfigureOffsetValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

	if _, err := f.kpi.ConfigureOffset(ctx, domain.ConfigureOffsetRequest{
		PeriodType:  "week",
		PeriodStart: date,
		Scope:       plant.ScopeUnit1,
		Name:        "generation",
	}); !errors.Is(err, domain.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}

	if _, err := f.kpi.ConfigureOffset(ctx, domain.ConfigureOffsetRequest{
		PeriodType:  domain.PeriodMonth,
		PeriodStart: date,
		Scope:       plant.ScopeEnergyMeter,
		Name:        "generation",
	}); !errors.Is(err, domain.ErrInvalidScope) {
		t.Fatalf("expected ErrInvalidScope, got %v", err)
	}

	if _, err := f.kpi.ConfigureOffset(ctx, domain.ConfigureOffsetRequest{
		PeriodType:  domain.PeriodMonth,
		PeriodStart: date,
		Scope:       plant.ScopeUnit1,
		Name:        "  ",
	}); !errors.Is(err, domain.ErrInvalidKPIName) {
		t.Fatalf("expected ErrInvalidKPIName, got %v", err)
	}
}
