package sendlog

import (
	"context"
	"fmt"
	"time"

	"dripline/internal/config"
	"dripline/internal/constants"
	"dripline/internal/logger"
	"dripline/pkg/metrics"
	"dripline/pkg/tracing"
)

type redisErrorHandlingStatus int

const (
	redisErrorHandlingDeny redisErrorHandlingStatus = iota
	redisErrorHandlingAllow
)

// Service guards against sending the same campaign to the same member
// twice. The marker is written with SetNX so the first caller wins.
type Service struct {
	repo             Repository
	records          RecordRepository
	cfg              config.SendLogConfig
	logger           logger.Logger
	stopCacheMetrics chan struct{}
	cancelMetricsCtx context.CancelFunc
}

type Option func(*Service)

// WithDurableRecords consults the postgres send log when the Redis
// marker is absent, so evicted markers do not cause duplicate sends.
func WithDurableRecords(records RecordRepository) Option {
	return func(s *Service) { s.records = records }
}

func NewService(repo Repository, cfg config.SendLogConfig, log logger.Logger, opts ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		repo:             repo,
		cfg:              cfg,
		logger:           log,
		stopCacheMetrics: make(chan struct{}),
		cancelMetricsCtx: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.updateLogSizeMetrics(ctx)

	return s
}

// CheckAndMark returns true when this is the first send of the campaign
// to the member. Subsequent calls with the same pair return false until
// the marker expires.
func (s *Service) CheckAndMark(ctx context.Context, campaignID, memberID string) (bool, error) {
	ctx, span := tracing.GetTracer("dispatch-service").Start(ctx, "sendlog.check_and_mark")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	key := Key(campaignID, memberID)
	start := time.Now()
	firstSend, err := s.repo.MarkSent(ctx, key, time.Now().Unix(), time.Duration(s.cfg.TTLSeconds)*time.Second)
	duration := time.Since(start)

	if err != nil {
		return s.handleRedisError(ctx, err, duration, campaignID, memberID)
	}

	if firstSend && s.records != nil {
		sent, recErr := s.records.WasSent(ctx, campaignID, memberID)
		if recErr != nil {
			s.logger.WarnwCtx(ctx, "Durable send-log check failed, trusting cache",
				"campaign_id", campaignID,
				"member_id", memberID,
				"error", recErr,
			)
		} else if sent {
			firstSend = false
		}
	}

	s.recordMetrics(duration, firstSend)
	return firstSend, nil
}

// Key builds the sent-marker cache key for a campaign/member pair.
func Key(campaignID, memberID string) string {
	return constants.CacheKeyPrefixSent + campaignID + ":" + memberID
}

func (s *Service) handleRedisError(ctx context.Context, err error, duration time.Duration, campaignID, memberID string) (bool, error) {
	s.recordMetricsWithStatus(duration, "error")
	status := s.getRedisErrorHandlingStatus(ctx, err)

	if status == redisErrorHandlingAllow {
		return true, nil
	}
	return false, fmt.Errorf("redis error during send check for campaign %s member %s: %w", campaignID, memberID, err)
}

func (s *Service) getRedisErrorHandlingStatus(ctx context.Context, err error) redisErrorHandlingStatus {
	if s.cfg.OnRedisError == constants.FallbackAllow {
		metrics.FallbackUsageTotal.WithLabelValues("sendlog", "allow_on_error", err.Error()).Inc()
		s.logger.WarnwCtx(ctx, "Redis error during send check, treating as first send (fallback: allow)",
			"error", err,
		)
		return redisErrorHandlingAllow
	}

	metrics.FallbackUsageTotal.WithLabelValues("sendlog", "deny_on_error", err.Error()).Inc()
	return redisErrorHandlingDeny
}

func (s *Service) recordMetrics(duration time.Duration, firstSend bool) {
	status := "duplicate"
	if firstSend {
		status = "first_send"
	}
	s.recordMetricsWithStatus(duration, status)
}

func (s *Service) recordMetricsWithStatus(duration time.Duration, status string) {
	metrics.SendChecksTotal.WithLabelValues(status).Inc()
	metrics.ObserveSendCheckDuration(duration, status)
}

// updateLogSizeMetrics periodically updates the SendLogSize metric
func (s *Service) updateLogSizeMetrics(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			size, err := s.repo.GetLogSize(ctx, constants.CacheKeyPrefixSent)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Debugw("Failed to get send-log size for metrics",
					"error", err,
				)
				continue
			}
			if ctx.Err() != nil {
				return
			}
			metrics.SetSendLogSize(size)
		case <-s.stopCacheMetrics:
			return
		case <-ctx.Done():
			return
		}
	}
}

// StopLogSizeUpdater stops the background log size metrics updater
func (s *Service) StopLogSizeUpdater() {
	if s.cancelMetricsCtx != nil {
		s.cancelMetricsCtx()
	}
	close(s.stopCacheMetrics)
}
