package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dalgayunus/iTicket/internal/fulfillment"
	"github.com/dalgayunus/iTicket/pkg/config"
	"github.com/dalgayunus/iTicket/pkg/db/models"
	"github.com/dalgayunus/iTicket/pkg/enums"
	"github.com/dalgayunus/iTicket/pkg/logger"
	"github.com/dalgayunus/iTicket/pkg/metrics"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10
)

type outboxSource interface {
	FetchUnpublished(limit int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

type fulfiller interface {
	FulfillOrder(ctx context.Context, orderID uuid.UUID, payload []byte) (*fulfillment.Result, error)
}

type ServiceParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	Outbox  outboxSource
	Fulfill fulfiller
	Metrics *metrics.WorkerMetrics
}

type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	outbox       outboxSource
	fulfill      fulfiller
	metrics      *metrics.WorkerMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Fulfill == nil {
		return nil, errors.New("fulfillment service is required")
	}

	batchSize := params.Config.Outbox.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	pollMs := params.Config.Outbox.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		outbox:       params.Outbox,
		fulfill:      params.Fulfill,
		metrics:      params.Metrics,
		batchSize:    batchSize,
		maxAttempts:  maxAttempts,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
	}, nil
}

// Run drains the outbox until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "fulfillment worker context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.drainOnce(ctx); err != nil {
				s.logg.Error(ctx, "outbox poll failed", err)
			}
		}
	}
}

func (s *Service) drainOnce(ctx context.Context) error {
	rows, err := s.outbox.FetchUnpublished(s.batchSize)
	if err != nil {
		return fmt.Errorf("fetch unpublished events: %w", err)
	}
	s.metrics.SetBacklog(len(rows))

	for _, row := range rows {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.handle(ctx, row)
	}
	return nil
}

func (s *Service) handle(ctx context.Context, row models.OutboxEvent) {
	eventType := string(row.EventType)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"outbox_event_id": row.ID.String(),
		"event_type":      eventType,
		"aggregate_id":    row.AggregateID.String(),
	})

	if row.AttemptCount >= s.maxAttempts {
		s.logg.Warn(ctx, "outbox event exhausted retry budget, leaving for inspection")
		return
	}

	start := time.Now()
	err := s.dispatch(ctx, row)
	s.metrics.ObserveDuration(eventType, time.Since(start))

	if err != nil {
		s.metrics.IncFailed(eventType)
		s.logg.Error(ctx, "outbox event handling failed", err)
		if markErr := s.outbox.MarkFailed(row.ID, err); markErr != nil {
			s.logg.Error(ctx, "failed to record outbox failure", markErr)
		}
		return
	}

	if err := s.outbox.MarkPublished(row.ID); err != nil {
		s.logg.Error(ctx, "failed to mark outbox event published", err)
		return
	}
	s.metrics.IncProcessed(eventType)
}

func (s *Service) dispatch(ctx context.Context, row models.OutboxEvent) error {
	switch row.EventType {
	case enums.EventOrderConfirmed:
		_, err := s.fulfill.FulfillOrder(ctx, row.AggregateID, row.Payload)
		return err
	default:
		// No worker-side effects for this event type yet.
		return nil
	}
}
