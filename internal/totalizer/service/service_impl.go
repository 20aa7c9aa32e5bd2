// Package service implements the totalizer diff engine on top of gorm.
package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stationops/pims/internal/clock"
	"github.com/stationops/pims/internal/events"
	"github.com/stationops/pims/internal/observability/metrics"
	"github.com/stationops/pims/internal/plant"
	"github.com/stationops/pims/internal/totalizer/domain"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Master  *domain.Master
	Clock   clock.Clock
	Outbox  *events.Outbox
	Metrics *metrics.EngineMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	master  *domain.Master
	clock   clock.Clock
	outbox  *events.Outbox
	metrics *metrics.EngineMetrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("totalizer.service"),
		genID:   p.GenID,
		master:  p.Master,
		clock:   p.Clock,
		outbox:  p.Outbox,
		metrics: p.Metrics,
	}
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResult, error) {
	date, err := s.normalizeDate(req.Date)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if !req.Scope.Valid() {
		return domain.SubmitResult{}, domain.ErrInvalidScope
	}
	if err := s.validateReadings(req.Scope, req.Readings); err != nil {
		return domain.SubmitResult{}, err
	}

	var changed []int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prev, err := s.previousValues(ctx, tx, date)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, in := range req.Readings {
			// Only privileged operators may move the diff; anyone else's
			// adjustment is forced to zero, the reading itself still lands.
			adjust := 0.0
			if in.AdjustValue != nil && req.Privileged {
				adjust = *in.AdjustValue
			}
			diff := in.Value - prev[in.TotalizerID] + adjust

			var existing domain.Reading
			err := tx.WithContext(ctx).
				Where("totalizer_id = ? AND date = ?", in.TotalizerID, date).
				First(&existing).Error
			switch {
			case err == nil:
				if existing.Value == in.Value && existing.AdjustValue == adjust {
					continue
				}
				existing.Value = in.Value
				existing.AdjustValue = adjust
				existing.DiffValue = diff
				existing.Author = req.Author
				existing.UpdatedAt = now
				if err := tx.WithContext(ctx).Save(&existing).Error; err != nil {
					return err
				}
				changed = append(changed, in.TotalizerID)
			case errors.Is(err, gorm.ErrRecordNotFound):
				record := domain.Reading{
					ID:          s.genID.Generate(),
					TotalizerID: in.TotalizerID,
					Date:        date,
					Value:       in.Value,
					AdjustValue: adjust,
					DiffValue:   diff,
					Author:      req.Author,
					CreatedAt:   now,
					UpdatedAt:   now,
				}
				if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
					return err
				}
				changed = append(changed, in.TotalizerID)
			default:
				return err
			}
		}

		if len(changed) == 0 {
			return nil
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventReadingsSubmitted,
			Payload: events.ReadingsSubmittedPayload{
				Date:    events.FormatDate(date),
				Scope:   string(req.Scope),
				Count:   len(req.Readings),
				Changed: changed,
				Author:  req.Author,
			}.ToMap(),
		})
	})
	if err != nil {
		return domain.SubmitResult{}, err
	}

	if len(changed) > 0 {
		s.metrics.IncReadingsSubmitted(string(req.Scope), len(changed))
		s.log.Info("readings submitted",
			zap.String("date", events.FormatDate(date)),
			zap.String("scope", string(req.Scope)),
			zap.Ints("changed", changed),
			zap.String("author", req.Author),
		)
	}
	return domain.SubmitResult{Changed: changed}, nil
}

func (s *Service) ListReadings(ctx context.Context, scope plant.Scope, date time.Time) ([]domain.Reading, error) {
	day, err := s.normalizeDate(date)
	if err != nil {
		return nil, err
	}
	if !scope.Valid() {
		return nil, domain.ErrInvalidScope
	}

	ids := s.master.ScopeIDs(scope)
	var rows []domain.Reading
	err = s.db.WithContext(ctx).
		Where("date = ? AND totalizer_id IN ?", day, ids).
		Order("totalizer_id asc").
		Find(&rows).Error
	return rows, err
}

func (s *Service) Diffs(ctx context.Context, date time.Time) (map[plant.Scope]map[string]float64, error) {
	day, err := s.normalizeDate(date)
	if err != nil {
		return nil, err
	}

	var rows []domain.Reading
	if err := s.db.WithContext(ctx).Where("date = ?", day).Find(&rows).Error; err != nil {
		return nil, err
	}
	prev, err := s.previousValues(ctx, s.db, day)
	if err != nil {
		return nil, err
	}

	diffs := s.emptyDiffMaps()
	for _, r := range rows {
		def, ok := s.master.Lookup(r.TotalizerID)
		if !ok {
			continue
		}
		diffs[def.Scope][def.Name] = r.Value - prev[r.TotalizerID] + r.AdjustValue
	}
	return diffs, nil
}

func (s *Service) PreviewDiffs(ctx context.Context, date time.Time, readings []domain.ReadingInput) (map[plant.Scope]map[string]float64, error) {
	day, err := s.normalizeDate(date)
	if err != nil {
		return nil, err
	}
	for _, in := range readings {
		if _, ok := s.master.Lookup(in.TotalizerID); !ok {
			return nil, domain.ErrUnknownTotalizer
		}
		if math.IsNaN(in.Value) || math.IsInf(in.Value, 0) {
			return nil, domain.ErrInvalidReading
		}
	}

	prev, err := s.previousValues(ctx, s.db, day)
	if err != nil {
		return nil, err
	}

	diffs := s.emptyDiffMaps()
	for _, in := range readings {
		def, _ := s.master.Lookup(in.TotalizerID)
		adjust := 0.0
		if in.AdjustValue != nil {
			adjust = *in.AdjustValue
		}
		diffs[def.Scope][def.Name] = in.Value - prev[in.TotalizerID] + adjust
	}
	return diffs, nil
}

func (s *Service) ConfigureBaseline(ctx context.Context, b domain.Baseline) error {
	if _, ok := s.master.Lookup(b.TotalizerID); !ok {
		return domain.ErrUnknownTotalizer
	}
	day, err := s.normalizeDate(b.EffectiveDate)
	if err != nil {
		return err
	}
	if math.IsNaN(b.Value) || math.IsInf(b.Value, 0) || b.Value < 0 {
		return domain.ErrInvalidBaseline
	}

	record := domain.Baseline{
		ID:            s.genID.Generate(),
		TotalizerID:   b.TotalizerID,
		EffectiveDate: day,
		Value:         b.Value,
		Reason:        b.Reason,
		ConfiguredBy:  b.ConfiguredBy,
		CreatedAt:     time.Now().UTC(),
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventBaselineSet,
			Payload: map[string]any{
				"totalizer_id":   record.TotalizerID,
				"effective_date": events.FormatDate(day),
				"value":          record.Value,
				"configured_by":  record.ConfiguredBy,
			},
		})
	})
}

func (s *Service) ListBaselines(ctx context.Context, totalizerID int) ([]domain.Baseline, error) {
	if _, ok := s.master.Lookup(totalizerID); !ok {
		return nil, domain.ErrUnknownTotalizer
	}
	var rows []domain.Baseline
	err := s.db.WithContext(ctx).
		Where("totalizer_id = ?", totalizerID).
		Order("effective_date desc, created_at desc").
		Find(&rows).Error
	return rows, err
}

// previousValues resolves the prior cumulative value for every totalizer:
// yesterday's stored reading when present, otherwise the latest baseline
// effective on or before the report date, otherwise zero.
func (s *Service) previousValues(ctx context.Context, db *gorm.DB, date time.Time) (map[int]float64, error) {
	yesterday := date.AddDate(0, 0, -1)

	var rows []domain.Reading
	if err := db.WithContext(ctx).Where("date = ?", yesterday).Find(&rows).Error; err != nil {
		return nil, err
	}
	prev := make(map[int]float64, s.master.Len())
	for _, r := range rows {
		prev[r.TotalizerID] = r.Value
	}

	var baselines []domain.Baseline
	if err := db.WithContext(ctx).
		Where("effective_date <= ?", date).
		Order("effective_date desc, created_at desc").
		Find(&baselines).Error; err != nil {
		return nil, err
	}
	for _, b := range baselines {
		if _, ok := prev[b.TotalizerID]; !ok {
			// Descending order means the latest effective baseline wins,
			// and a stored reading always beats a baseline.
			prev[b.TotalizerID] = b.Value
		}
	}

	for _, id := range s.master.IDs() {
		if _, ok := prev[id]; !ok {
			prev[id] = 0
		}
	}
	return prev, nil
}

func (s *Service) validateReadings(scope plant.Scope, readings []domain.ReadingInput) error {
	if len(readings) == 0 {
		return domain.ErrInvalidReading
	}
	for _, in := range readings {
		def, ok := s.master.Lookup(in.TotalizerID)
		if !ok {
			return domain.ErrUnknownTotalizer
		}
		if def.Scope != scope {
			return domain.ErrInvalidScope
		}
		if math.IsNaN(in.Value) || math.IsInf(in.Value, 0) || in.Value < 0 {
			return domain.ErrInvalidReading
		}
		if in.AdjustValue != nil {
			if math.IsNaN(*in.AdjustValue) || math.IsInf(*in.AdjustValue, 0) {
				return domain.ErrInvalidReading
			}
		}
	}
	return nil
}

// normalizeDate truncates to a UTC calendar date and rejects zero or future
// dates.
func (s *Service) normalizeDate(d time.Time) (time.Time, error) {
	if d.IsZero() {
		return time.Time{}, domain.ErrInvalidDate
	}
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	now := s.clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if day.After(today) {
		return time.Time{}, domain.ErrInvalidDate
	}
	return day, nil
}

func (s *Service) emptyDiffMaps() map[plant.Scope]map[string]float64 {
	diffs := map[plant.Scope]map[string]float64{
		plant.ScopeUnit1:       {},
		plant.ScopeUnit2:       {},
		plant.ScopeStation:     {},
		plant.ScopeEnergyMeter: {},
	}
	for _, id := range s.master.IDs() {
		def, _ := s.master.Lookup(id)
		diffs[def.Scope][def.Name] = 0
	}
	return diffs
}
