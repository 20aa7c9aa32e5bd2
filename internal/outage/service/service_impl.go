// Package service implements the outage log on top of gorm.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stationops/pims/internal/events"
	"github.com/stationops/pims/internal/kpi/formula"
	"github.com/stationops/pims/internal/outage/domain"
	"github.com/stationops/pims/internal/plant"
)

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Outbox *events.Outbox
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	outbox *events.Outbox
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("outage.service"),
		genID:  p.GenID,
		outbox: p.Outbox,
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordRequest) (*domain.Record, error) {
	if req.Scope != plant.ScopeUnit1 && req.Scope != plant.ScopeUnit2 {
		return nil, domain.ErrInvalidScope
	}
	outageType := strings.TrimSpace(req.OutageType)
	if outageType == "" {
		return nil, domain.ErrInvalidType
	}
	if req.StartedAt.IsZero() {
		return nil, domain.ErrInvalidWindow
	}

	now := time.Now().UTC()
	record := &domain.Record{
		ID:                s.genID.Generate(),
		Scope:             req.Scope,
		OutageType:        outageType,
		StartedAt:         req.StartedAt.UTC(),
		Reason:            req.Reason,
		ResponsibleAgency: req.ResponsibleAgency,
		NotificationNo:    req.NotificationNo,
		Remarks:           req.Remarks,
		RecordedBy:        req.RecordedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(record).Error; err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventOutageRecorded,
			Payload: events.OutagePayload{
				OutageID: int64(record.ID),
				Scope:    string(record.Scope),
				Type:     record.OutageType,
				Start:    record.StartedAt.Format(time.RFC3339),
			}.ToMap(),
			DedupeKey: "outage.recorded:" + record.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("outage recorded",
		zap.String("scope", string(record.Scope)),
		zap.String("type", record.OutageType),
		zap.Time("started_at", record.StartedAt),
	)
	return record, nil
}

func (s *Service) Close(ctx context.Context, req domain.CloseRequest) (*domain.Record, error) {
	if req.EndedAt.IsZero() {
		return nil, domain.ErrInvalidEndTime
	}

	var record domain.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).First(&record, "id = ?", req.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if !record.Open() {
			return domain.ErrAlreadyClosed
		}

		endedAt := req.EndedAt.UTC()
		if !endedAt.After(record.StartedAt) {
			return domain.ErrInvalidEndTime
		}

		record.EndedAt = &endedAt
		record.SyncNotes = req.SyncNotes
		record.OilUsedKL = req.OilUsedKL
		record.CoalUsedT = req.CoalUsedT
		record.UpdatedAt = time.Now().UTC()
		if err := tx.WithContext(ctx).Save(&record).Error; err != nil {
			return err
		}

		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventOutageClosed,
			Payload: events.OutagePayload{
				OutageID: int64(record.ID),
				Scope:    string(record.Scope),
				Type:     record.OutageType,
				Start:    record.StartedAt.Format(time.RFC3339),
				End:      endedAt.Format(time.RFC3339),
			}.ToMap(),
			DedupeKey: "outage.closed:" + record.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	record.RefreshDuration()
	s.log.Info("outage closed",
		zap.String("scope", string(record.Scope)),
		zap.String("duration", record.Duration),
	)
	return &record, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Record, error) {
	var record domain.Record
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.Record, error) {
	q := s.db.WithContext(ctx).Model(&domain.Record{}).Order("started_at desc")
	if filter.Scope != "" {
		if filter.Scope != plant.ScopeUnit1 && filter.Scope != plant.ScopeUnit2 {
			return nil, domain.ErrInvalidScope
		}
		q = q.Where("scope = ?", filter.Scope)
	}
	if !filter.From.IsZero() {
		q = q.Where("started_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		q = q.Where("started_at < ?", filter.To.UTC())
	}

	var rows []domain.Record
	err := q.Find(&rows).Error
	return rows, err
}

func (s *Service) Latest(ctx context.Context, n int) ([]domain.Record, error) {
	if n <= 0 {
		n = 5
	}
	var rows []domain.Record
	err := s.db.WithContext(ctx).
		Order("id desc").
		Limit(n).
		Find(&rows).Error
	return rows, err
}

func (s *Service) OpenCount(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&domain.Record{}).
		Where("ended_at IS NULL").
		Count(&count).Error
	return int(count), err
}

func (s *Service) HoursForDay(ctx context.Context, scope plant.Scope, date time.Time) (domain.DayHours, error) {
	if scope != plant.ScopeUnit1 && scope != plant.ScopeUnit2 {
		return domain.DayHours{}, domain.ErrInvalidScope
	}

	windowStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	windowEnd := windowStart.Add(24 * time.Hour)

	var rows []domain.Record
	err := s.db.WithContext(ctx).
		Where("scope = ? AND started_at < ?", scope, windowEnd).
		Where("ended_at IS NULL OR ended_at > ?", windowStart).
		Find(&rows).Error
	if err != nil {
		return domain.DayHours{}, err
	}

	var total, planned, strategic float64
	for _, r := range rows {
		hrs := overlapHours(r, windowStart, windowEnd)
		if hrs <= 0 {
			continue
		}
		total += hrs
		switch strings.ToLower(r.OutageType) {
		case strings.ToLower(domain.TypePlanned):
			planned += hrs
		case strings.ToLower(domain.TypeStrategic):
			strategic += hrs
		}
	}

	running := 24 - total
	if running < 0 {
		running = 0
	}

	return domain.DayHours{
		RunningHour:         formula.Round(running, 2),
		AvailabilityPercent: formula.Round(running/24*100, 2),
		PlannedHour:         formula.Round(planned, 2),
		PlannedPercent:      formula.Round(planned/24*100, 2),
		StrategicHour:       formula.Round(strategic, 2),
	}, nil
}

// overlapHours clips one outage to the day window. Open outages run to the
// end of the window.
func overlapHours(r domain.Record, windowStart, windowEnd time.Time) float64 {
	end := windowEnd
	if r.EndedAt != nil && r.EndedAt.Before(windowEnd) {
		end = *r.EndedAt
	}
	start := r.StartedAt
	if start.Before(windowStart) {
		start = windowStart
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Hours()
}
