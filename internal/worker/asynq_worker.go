package worker

import (
	"context"
	"encoding/json"

	"github.com/topup-next/internal/constants"
	"github.com/topup-next/internal/logger"
	"github.com/topup-next/internal/provider"
	"github.com/topup-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(constants.TaskRechargeSuccessNotify, c.handleRechargeSuccessNotify)
}

// handleRechargeSuccessNotify 入账成功后的站内通知投递。
// 订单必须已是 paid 才发出，其余情况静默丢弃而不重试。
func (c *Consumer) handleRechargeSuccessNotify(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_recharge_notify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.RechargeSuccessNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_recharge_notify_unmarshal_failed", "error", err)
		return err
	}
	if payload.RechargeID == 0 || payload.RechargeNo == "" {
		logger.Debugw("worker_recharge_notify_skip_invalid_payload", "recharge_id", payload.RechargeID)
		return nil
	}

	order, err := c.RechargeRepo.GetByRechargeNo(payload.RechargeNo)
	if err != nil {
		logger.Warnw("worker_recharge_notify_fetch_failed", "recharge_no", payload.RechargeNo, "error", err)
		return err
	}
	if order == nil {
		logger.Debugw("worker_recharge_notify_skip_order_not_found", "recharge_no", payload.RechargeNo)
		return nil
	}
	if order.Status != constants.RechargeStatusPaid {
		logger.Debugw("worker_recharge_notify_skip_not_paid",
			"recharge_no", order.RechargeNo,
			"status", order.Status,
		)
		return nil
	}

	user, err := c.UserRepo.GetByID(order.UserID)
	if err != nil {
		logger.Warnw("worker_recharge_notify_fetch_user_failed", "user_id", order.UserID, "error", err)
		return err
	}
	if user == nil {
		logger.Debugw("worker_recharge_notify_skip_user_not_found", "user_id", order.UserID)
		return nil
	}

	logger.Infow("worker_recharge_notify_dispatched",
		"recharge_no", order.RechargeNo,
		"user_id", user.ID,
		"email", user.Email,
		"amount_cents", payload.AmountCents,
		"balance_after_cents", payload.BalanceAfterCents,
		"channel", payload.Channel,
	)
	return nil
}
