package service

import (
	"fmt"
	"strings"

	"github.com/topup-next/internal/constants"
	"github.com/topup-next/internal/models"
	"github.com/topup-next/internal/queue"
	"github.com/topup-next/internal/repository"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// 对账结果分类
const (
	OutcomeConfirmed     = "confirmed"       // 本次事件完成了入账
	OutcomeDuplicate     = "duplicate"       // 重复投递，幂等成功
	OutcomeIgnored       = "ignored"         // 可忽略事件（非终态通知）
	OutcomeOrderNotFound = "order_not_found" // 单号不存在，应答成功防止重试风暴
)

// ReconcileResult 对账结果
type ReconcileResult struct {
	Outcome           string
	Order             *models.RechargeOrder
	BalanceAfterCents int64 // 仅 OutcomeConfirmed 时有意义
}

// ApplyEvent 将规范化支付事件对账入账。所有完成信号（异步回调与主动
// 查询）都经由此入口，确保同一笔充值恰好入账一次。
//
// 返回错误时调用方必须向网关应答失败以触发重试；返回结果（含
// duplicate / ignored / order_not_found）则应答成功。
func (s *RechargeService) ApplyEvent(event *CanonicalPaymentEvent) (*ReconcileResult, error) {
	if event == nil || strings.TrimSpace(event.RechargeNo) == "" {
		return nil, fmt.Errorf("%w: event recharge_no is required", ErrNotifyMalformed)
	}
	log := rechargeLogger(
		"recharge_no", event.RechargeNo,
		"trade_no", event.TradeNo,
		"channel", event.Channel,
		"event_kind", event.Kind,
		"event_amount_cents", event.AmountCents,
	)

	if event.Kind != constants.EventKindSuccess {
		log.Infow("recharge_event_ignored")
		return &ReconcileResult{Outcome: OutcomeIgnored}, nil
	}

	order, err := s.rechargeRepo.GetByRechargeNo(event.RechargeNo)
	if err != nil {
		log.Errorw("recharge_event_order_fetch_failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrConfirmFailed, err)
	}
	if order == nil {
		// 单号不存在时仍应答成功：失败应答只会让网关无限重试一笔
		// 永远无法入账的通知。WARN 留痕供人工排查
		log.Warnw("recharge_event_order_not_found")
		return &ReconcileResult{Outcome: OutcomeOrderNotFound}, nil
	}

	if order.Status == constants.RechargeStatusPaid {
		log.Infow("recharge_event_duplicate", "paid_at", order.PaidAt)
		return &ReconcileResult{Outcome: OutcomeDuplicate, Order: order}, nil
	}
	if order.Status != constants.RechargeStatusPending {
		log.Warnw("recharge_event_state_invalid", "status", order.Status)
		return nil, ErrRechargeStateInvalid
	}
	if order.AmountCents != event.AmountCents {
		// 金额不一致从不自动修正，人工介入前保持 pending
		log.Warnw("recharge_event_amount_mismatch",
			"stored_amount_cents", order.AmountCents,
		)
		return nil, ErrAmountMismatch
	}

	confirm, err := s.rechargeRepo.ConfirmIfPending(order.ID, event.TradeNo, event.AmountCents)
	if err != nil {
		log.Errorw("recharge_confirm_failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrConfirmFailed, err)
	}

	switch confirm.Status {
	case repository.ConfirmApplied:
		log.Infow("recharge_confirmed",
			"balance_after_cents", confirm.BalanceAfterCents,
		)
		s.enqueueRechargeSuccessNotifyAsync(&confirm.Order, confirm.BalanceAfterCents, log)
		return &ReconcileResult{
			Outcome:           OutcomeConfirmed,
			Order:             &confirm.Order,
			BalanceAfterCents: confirm.BalanceAfterCents,
		}, nil
	case repository.ConfirmDuplicate:
		// 并发投递：另一个写入者先完成了迁移
		log.Infow("recharge_event_duplicate_concurrent")
		return &ReconcileResult{Outcome: OutcomeDuplicate, Order: &confirm.Order}, nil
	case repository.ConfirmStateInvalid:
		log.Warnw("recharge_event_state_invalid", "status", confirm.Order.Status)
		return nil, ErrRechargeStateInvalid
	case repository.ConfirmAmountMismatch:
		log.Warnw("recharge_event_amount_mismatch",
			"stored_amount_cents", confirm.Order.AmountCents,
		)
		return nil, ErrAmountMismatch
	default:
		log.Errorw("recharge_confirm_unknown_status", "confirm_status", confirm.Status)
		return nil, ErrConfirmFailed
	}
}

func (s *RechargeService) enqueueRechargeSuccessNotifyAsync(order *models.RechargeOrder, balanceAfterCents int64, log *zap.SugaredLogger) {
	if s.queueClient == nil || order == nil {
		return
	}
	err := s.queueClient.EnqueueRechargeSuccessNotify(queue.RechargeSuccessNotifyPayload{
		RechargeID:        order.ID,
		RechargeNo:        order.RechargeNo,
		UserID:            order.UserID,
		AmountCents:       order.AmountCents,
		BalanceAfterCents: balanceAfterCents,
		Channel:           order.Channel,
	}, asynq.MaxRetry(3))
	if err != nil {
		log.Warnw("recharge_enqueue_success_notify_failed", "error", err)
	}
}
