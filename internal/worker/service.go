package worker

import (
	"context"
	"errors"
	"time"

	"github.com/topup-next/internal/config"
	"github.com/topup-next/internal/logger"
	"github.com/topup-next/internal/queue"

	"github.com/hibiken/asynq"
)

// sweepSettings 巡检节奏，来自 payment.poll 配置，缺省时取兜底值
type sweepSettings struct {
	interval time.Duration
	minAge   time.Duration
	batch    int
}

func resolveSweepSettings(cfg *config.Config) sweepSettings {
	settings := sweepSettings{
		interval: time.Minute,
		minAge:   2 * time.Minute,
		batch:    100,
	}
	if cfg == nil {
		return settings
	}
	poll := cfg.Payment.Poll
	if poll.IntervalSeconds > 0 {
		settings.interval = time.Duration(poll.IntervalSeconds) * time.Second
	}
	if poll.MinAgeSeconds > 0 {
		settings.minAge = time.Duration(poll.MinAgeSeconds) * time.Second
	}
	if poll.BatchSize > 0 {
		settings.batch = poll.BatchSize
	}
	return settings
}

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.RechargeService != nil {
		go s.runPendingSweepLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runPendingSweepLoop 周期性巡检滞留的待支付单，补齐丢失的异步通知
func (s *Service) runPendingSweepLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.RechargeService == nil {
		return
	}
	settings := resolveSweepSettings(s.consumer.Config)
	runOnce := func() {
		confirmed, err := s.consumer.RechargeService.SweepPendingRecharges(ctx, settings.minAge, settings.batch)
		if err != nil {
			logger.Warnw("worker_pending_sweep_failed", "error", err)
			return
		}
		if confirmed > 0 {
			logger.Infow("worker_pending_sweep_confirmed", "count", confirmed)
		}
	}
	runOnce()

	ticker := time.NewTicker(settings.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
