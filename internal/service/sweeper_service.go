package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-regassist-be/internal/dto"
	"ai-regassist-be/internal/pkg/logger"
	"ai-regassist-be/pkg/events"
	"ai-regassist-be/pkg/ratelimit"
	"ai-regassist-be/pkg/session"
)

type ISweeperService interface {
	Run(ctx context.Context)
	SweepOnce(now time.Time) int
}

// sweeperService periodically removes expired sessions and drops the
// rate limiter state that belonged to them.
type sweeperService struct {
	sessions  *session.Store
	limiter   *ratelimit.Limiter
	publisher IPublisherService
	interval  time.Duration
	sysLogger logger.ILogger
}

func NewSweeperService(
	sessions *session.Store,
	limiter *ratelimit.Limiter,
	publisher IPublisherService,
	interval time.Duration,
	sysLogger logger.ILogger,
) ISweeperService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &sweeperService{
		sessions:  sessions,
		limiter:   limiter,
		publisher: publisher,
		interval:  interval,
		sysLogger: sysLogger,
	}
}

// Run sweeps on a fixed interval until the context is cancelled
func (s *sweeperService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sysLogger.Info("sweeper", "Background session sweeper started", map[string]interface{}{
		"interval": s.interval.String(),
	})

	for {
		select {
		case <-ctx.Done():
			s.sysLogger.Info("sweeper", "Background session sweeper stopped", nil)
			return
		case now := <-ticker.C:
			s.SweepOnce(now)
		}
	}
}

// SweepOnce runs a single sweep pass and returns the number of
// sessions removed.
func (s *sweeperService) SweepOnce(now time.Time) int {
	expired := s.sessions.Sweep(now)
	s.limiter.Cleanup(s.sessions.ActiveIDs())

	if expired > 0 {
		s.sysLogger.Info("sweeper", "Expired sessions removed", map[string]interface{}{
			"count": expired,
		})
		s.emit(events.NewSessionExpired(expired))
	}
	return expired
}

func (s *sweeperService) emit(event events.Event) {
	if s.publisher == nil {
		return
	}

	payload, err := json.Marshal(dto.AnalyticsEventMessage{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	if err != nil {
		return
	}
	if err := s.publisher.Publish(context.Background(), payload); err != nil {
		s.sysLogger.Warn("sweeper", "Failed to publish analytics event", map[string]interface{}{"error": err.Error()})
	}
}
