// Package service implements the KPI derivation engine: full-day compute,
// selective persistence and period rollups.
package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stationops/pims/internal/cache"
	"github.com/stationops/pims/internal/clock"
	"github.com/stationops/pims/internal/events"
	"github.com/stationops/pims/internal/kpi/aggregate"
	"github.com/stationops/pims/internal/kpi/depend"
	"github.com/stationops/pims/internal/kpi/domain"
	"github.com/stationops/pims/internal/kpi/formula"
	"github.com/stationops/pims/internal/observability/metrics"
	outagedomain "github.com/stationops/pims/internal/outage/domain"
	"github.com/stationops/pims/internal/plant"
	totalizerdomain "github.com/stationops/pims/internal/totalizer/domain"
)

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	PlantCfg     plant.Config
	Clock        clock.Clock
	Master       *totalizerdomain.Master
	TotalizerSvc totalizerdomain.Service
	OutageSvc    outagedomain.Service
	Graph        *depend.Graph
	Aggregator   *aggregate.Aggregator
	DayCache     cache.DayCache
	Outbox       *events.Outbox
	Metrics      *metrics.EngineMetrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	plantCfg plant.Config
	clock    clock.Clock
	master   *totalizerdomain.Master

	totalizerSvc totalizerdomain.Service
	outageSvc    outagedomain.Service
	graph        *depend.Graph
	aggregator   *aggregate.Aggregator
	dayCache     cache.DayCache
	outbox       *events.Outbox
	metrics      *metrics.EngineMetrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("kpi.service"),
		genID:    p.GenID,
		plantCfg: p.PlantCfg,
		clock:    p.Clock,
		master:   p.Master,

		totalizerSvc: p.TotalizerSvc,
		outageSvc:    p.OutageSvc,
		graph:        p.Graph,
		aggregator:   p.Aggregator,
		dayCache:     p.DayCache,
		outbox:       p.Outbox,
		metrics:      p.Metrics,
	}
}

func (s *Service) Recompute(ctx context.Context, date time.Time, changed []int, author string) (int, error) {
	start := time.Now()
	day := dateOnly(date)

	diffs, err := s.totalizerSvc.Diffs(ctx, day)
	if err != nil {
		return 0, err
	}
	computed, energy, err := s.computeDay(ctx, day, diffs)
	if err != nil {
		return 0, err
	}

	existing, err := s.loadRecords(ctx, day, day, domain.KindAuto)
	if err != nil {
		return 0, err
	}
	old := existing[events.FormatDate(day)]

	existingEnergy, err := s.loadRecords(ctx, day, day, domain.KindEnergy)
	if err != nil {
		return 0, err
	}
	oldEnergy := existingEnergy[events.FormatDate(day)]

	// With no changed set every derived indicator is in scope.
	var affected map[depend.Key]struct{}
	if len(changed) > 0 {
		affected = s.graph.Affected(changed)
	}
	writeEnergy := len(changed) == 0 || s.anyEnergyMeter(changed)

	updated := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, scope := range plant.ReportScopes {
			for name, value := range computed[scope] {
				if math.IsNaN(value) || math.IsInf(value, 0) {
					continue
				}
				if affected != nil {
					if _, ok := affected[depend.NewKey(scope, name)]; !ok {
						s.metrics.IncKPISkipped()
						continue
					}
				}
				if old != nil {
					if oldValue, ok := old[scope][name]; ok &&
						math.Abs(oldValue-value) < s.plantCfg.Epsilon {
						s.metrics.IncKPISkipped()
						continue
					}
				}
				if err := s.upsertRecord(ctx, tx, day, domain.KindAuto, scope, name, value, author); err != nil {
					return err
				}
				s.metrics.IncKPIUpdated(string(scope))
				updated++
			}
		}

		// The raw energy-meter balance stores under its own kind so the
		// station aux/tie figures stay visible alongside the derived set.
		if writeEnergy {
			for name, value := range energy {
				if math.IsNaN(value) || math.IsInf(value, 0) {
					continue
				}
				if oldEnergy != nil {
					if oldValue, ok := oldEnergy[plant.ScopeStation][name]; ok &&
						math.Abs(oldValue-value) < s.plantCfg.Epsilon {
						s.metrics.IncKPISkipped()
						continue
					}
				}
				if err := s.upsertRecord(ctx, tx, day, domain.KindEnergy, plant.ScopeStation, name, value, author); err != nil {
					return err
				}
				s.metrics.IncKPIUpdated(string(plant.ScopeStation))
				updated++
			}
		}

		if updated == 0 {
			return nil
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventKPIUpdated,
			Payload: events.KPIUpdatedPayload{
				Date:    events.FormatDate(day),
				Updated: updated,
				Author:  author,
			}.ToMap(),
		})
	})
	if err != nil {
		return 0, err
	}

	s.dayCache.Delete(events.FormatDate(day))
	s.metrics.ObserveRecompute(time.Since(start))
	s.log.Info("kpi recompute finished",
		zap.String("date", events.FormatDate(day)),
		zap.Int("updated", updated),
		zap.Int("changed_totalizers", len(changed)),
	)
	return updated, nil
}

func (s *Service) Preview(ctx context.Context, date time.Time, readings []totalizerdomain.ReadingInput) (domain.ScopeMap, error) {
	day := dateOnly(date)
	diffs, err := s.totalizerSvc.PreviewDiffs(ctx, day, readings)
	if err != nil {
		return nil, err
	}
	computed, _, err := s.computeDay(ctx, day, diffs)
	return computed, err
}

func (s *Service) Report(ctx context.Context, date time.Time) (domain.Report, error) {
	day := dateOnly(date)

	monthStart := plant.MonthStartDate(day)
	yearStart := s.plantCfg.FiscalYearStartDate(day)

	yearDays, err := s.loadDays(ctx, yearStart, day)
	if err != nil {
		return domain.Report{}, err
	}

	monthDays := make([]aggregate.Day, 0, 31)
	var dayValues domain.ScopeMap
	for _, d := range yearDays {
		if !d.Date.Before(monthStart) {
			monthDays = append(monthDays, d)
		}
		if d.Date.Equal(day) {
			dayValues = d.Scopes
		}
	}
	if dayValues == nil {
		dayValues = make(domain.ScopeMap)
	}

	month := s.aggregator.Aggregate(monthDays, domain.PeriodMonth)
	year := s.aggregator.Aggregate(yearDays, domain.PeriodYear)

	monthOffsets, err := s.ListOffsets(ctx, domain.PeriodMonth, monthStart)
	if err != nil {
		return domain.Report{}, err
	}
	s.aggregator.ApplyOffsets(month, monthOffsets, domain.PeriodMonth)

	yearOffsets, err := s.ListOffsets(ctx, domain.PeriodYear, yearStart)
	if err != nil {
		return domain.Report{}, err
	}
	s.aggregator.ApplyOffsets(year, yearOffsets, domain.PeriodYear)

	return domain.Report{
		ReportDate: day,
		Day:        dayValues,
		Month:      month,
		Year:       year,
	}, nil
}

func (s *Service) SubmitManual(ctx context.Context, req domain.SubmitManualRequest) error {
	day := dateOnly(req.Date)
	if len(req.Entries) == 0 {
		return domain.ErrInvalidKPIValue
	}
	for _, e := range req.Entries {
		if !reportScope(e.Scope) {
			return domain.ErrInvalidScope
		}
		if strings.TrimSpace(e.Name) == "" {
			return domain.ErrInvalidKPIName
		}
		if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
			return domain.ErrInvalidKPIValue
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range req.Entries {
			if err := s.upsertRecord(ctx, tx, day, domain.KindManual, e.Scope, e.Name, e.Value, req.Author); err != nil {
				return err
			}
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventKPIUpdated,
			Payload: events.KPIUpdatedPayload{
				Date:    events.FormatDate(day),
				Updated: len(req.Entries),
				Author:  req.Author,
			}.ToMap(),
		})
	})
	if err != nil {
		return err
	}

	s.dayCache.Delete(events.FormatDate(day))
	return nil
}

func (s *Service) ConfigureOffset(ctx context.Context, req domain.ConfigureOffsetRequest) (*domain.Offset, error) {
	if req.PeriodType != domain.PeriodMonth && req.PeriodType != domain.PeriodYear {
		return nil, domain.ErrInvalidPeriod
	}
	if !reportScope(req.Scope) {
		return nil, domain.ErrInvalidScope
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, domain.ErrInvalidKPIName
	}
	if math.IsNaN(req.Value) || math.IsInf(req.Value, 0) {
		return nil, domain.ErrInvalidKPIValue
	}

	periodStart := s.normalizePeriodStart(req.PeriodType, req.PeriodStart)
	periodEnd := dateOnly(req.PeriodEnd)
	if req.PeriodEnd.IsZero() {
		periodEnd = s.periodEnd(req.PeriodType, periodStart)
	}
	if periodEnd.Before(periodStart) {
		return nil, domain.ErrInvalidPeriod
	}
	now := time.Now().UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`INSERT INTO kpi_offsets (id, period_type, period_start, period_end, scope, name, value, reason, source, configured_by, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (period_type, period_start, scope, name)
			 DO UPDATE SET period_end = excluded.period_end, value = excluded.value,
			               reason = excluded.reason, source = excluded.source,
			               configured_by = excluded.configured_by, updated_at = excluded.updated_at`,
			s.genID.Generate(), req.PeriodType, periodStart, periodEnd, req.Scope, req.Name,
			req.Value, req.Reason, req.Source, req.ConfiguredBy, now, now,
		).Error; err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventOffsetConfigured,
			Payload: map[string]any{
				"period_type":  req.PeriodType,
				"period_start": events.FormatDate(periodStart),
				"scope":        string(req.Scope),
				"kpi_name":     req.Name,
				"value":        req.Value,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	var row domain.Offset
	err = s.db.WithContext(ctx).
		Where("period_type = ? AND period_start = ? AND scope = ? AND name = ?",
			req.PeriodType, periodStart, req.Scope, req.Name).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Service) ListOffsets(ctx context.Context, periodType string, periodStart time.Time) ([]domain.Offset, error) {
	if periodType != domain.PeriodMonth && periodType != domain.PeriodYear {
		return nil, domain.ErrInvalidPeriod
	}
	var rows []domain.Offset
	err := s.db.WithContext(ctx).
		Where("period_type = ? AND period_start = ?", periodType, s.normalizePeriodStart(periodType, periodStart)).
		Order("scope asc, name asc").
		Find(&rows).Error
	return rows, err
}

func (s *Service) DeleteOffset(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&domain.Offset{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrOffsetNotFound
	}
	return nil
}

// anyEnergyMeter reports whether any changed totalizer belongs to the
// energy meter scope.
func (s *Service) anyEnergyMeter(changed []int) bool {
	for _, id := range changed {
		if def, ok := s.master.Lookup(id); ok && def.Scope == plant.ScopeEnergyMeter {
			return true
		}
	}
	return false
}

// computeDay derives the complete day indicator set from the diff maps:
// energy first to obtain the generations, then the unit and station scopes.
// The raw energy map is returned alongside so it can persist under its own
// record kind.
func (s *Service) computeDay(ctx context.Context, day time.Time, diffs map[plant.Scope]map[string]float64) (domain.ScopeMap, map[string]float64, error) {
	energy := formula.EnergyKPIs(diffs[plant.ScopeEnergyMeter], s.plantCfg)
	gen1 := energy["unit1_generation"]
	gen2 := energy["unit2_generation"]

	unit1 := formula.UnitKPIs(diffs[plant.ScopeUnit1], gen1)
	unit2 := formula.UnitKPIs(diffs[plant.ScopeUnit2], gen2)
	water := formula.StationWaterKPIs(diffs[plant.ScopeStation], gen1, gen2)

	hours1, err := s.outageSvc.HoursForDay(ctx, plant.ScopeUnit1, day)
	if err != nil {
		return nil, nil, err
	}
	hours2, err := s.outageSvc.HoursForDay(ctx, plant.ScopeUnit2, day)
	if err != nil {
		return nil, nil, err
	}

	for name, value := range hours1.ToKPIMap() {
		unit1[name] = value
	}
	for name, value := range hours2.ToKPIMap() {
		unit2[name] = value
	}

	unit1["generation"] = gen1
	unit1["plf_percent"] = energy["unit1_plf_percent"]
	unit1["aux_power"] = energy["unit1_aux_consumption_mwh"]
	unit1["aux_power_percent"] = energy["unit1_aux_percent"]

	unit2["generation"] = gen2
	unit2["plf_percent"] = energy["unit2_plf_percent"]
	unit2["aux_power"] = energy["unit2_aux_consumption_mwh"]
	unit2["aux_power_percent"] = energy["unit2_aux_percent"]

	station := formula.StationKPIs(unit1, unit2, water, s.plantCfg)

	return domain.ScopeMap{
		plant.ScopeUnit1:   unit1,
		plant.ScopeUnit2:   unit2,
		plant.ScopeStation: station,
	}, energy, nil
}

// loadDays returns the stored day sets between from and to inclusive, in
// date order, consulting the day cache first.
func (s *Service) loadDays(ctx context.Context, from, to time.Time) ([]aggregate.Day, error) {
	byDate := make(map[string]aggregate.Day)
	var missingFrom, missingTo time.Time

	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		key := events.FormatDate(d)
		if cached, ok := s.dayCache.Get(key); ok {
			byDate[key] = cached
			continue
		}
		if missingFrom.IsZero() {
			missingFrom = d
		}
		missingTo = d
	}

	if !missingFrom.IsZero() {
		loaded, err := s.loadRecords(ctx, missingFrom, missingTo, "")
		if err != nil {
			return nil, err
		}
		for d := missingFrom; !d.After(missingTo); d = d.AddDate(0, 0, 1) {
			key := events.FormatDate(d)
			if _, ok := byDate[key]; ok {
				continue
			}
			scopes := loaded[key]
			if scopes == nil {
				scopes = make(domain.ScopeMap)
			}
			entry := aggregate.Day{Date: d, Scopes: scopes}
			byDate[key] = entry
			s.dayCache.Set(key, entry, cache.DayCacheTTL)
		}
	}

	out := make([]aggregate.Day, 0, len(byDate))
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		entry := byDate[events.FormatDate(d)]
		if len(entry.Scopes) == 0 {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// loadRecords loads stored KPI rows between two dates grouped by date. Auto
// records load first so a manual record for the same name overrides it.
func (s *Service) loadRecords(ctx context.Context, from, to time.Time, kind string) (map[string]domain.ScopeMap, error) {
	q := s.db.WithContext(ctx).Model(&domain.Record{}).
		Where("report_date >= ? AND report_date <= ?", from, to)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}

	var rows []domain.Record
	if err := q.Order("report_date asc, kind asc").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[string]domain.ScopeMap)
	for _, row := range rows {
		key := events.FormatDate(row.ReportDate)
		if out[key] == nil {
			out[key] = make(domain.ScopeMap)
		}
		if out[key][row.Scope] == nil {
			out[key][row.Scope] = make(map[string]float64)
		}
		out[key][row.Scope][row.Name] = row.Value
	}
	return out, nil
}

func (s *Service) upsertRecord(ctx context.Context, tx *gorm.DB, day time.Time, kind string, scope plant.Scope, name string, value float64, author string) error {
	now := time.Now().UTC()
	return tx.WithContext(ctx).Exec(
		`INSERT INTO kpi_records (id, report_date, kind, scope, name, value, author, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (report_date, kind, scope, name)
		 DO UPDATE SET value = excluded.value, author = excluded.author, updated_at = excluded.updated_at`,
		s.genID.Generate(), day, kind, scope, name, value, author, now, now,
	).Error
}

func (s *Service) normalizePeriodStart(periodType string, d time.Time) time.Time {
	day := dateOnly(d)
	if periodType == domain.PeriodYear {
		return s.plantCfg.FiscalYearStartDate(day)
	}
	return plant.MonthStartDate(day)
}

// periodEnd returns the last day of the period beginning at start.
func (s *Service) periodEnd(periodType string, start time.Time) time.Time {
	if periodType == domain.PeriodYear {
		return start.AddDate(1, 0, -1)
	}
	return start.AddDate(0, 1, -1)
}

func dateOnly(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func reportScope(scope plant.Scope) bool {
	for _, s := range plant.ReportScopes {
		if s == scope {
			return true
		}
	}
	return false
}
