package service

import (
	"context"
	"time"

	"github.com/topup-next/internal/constants"
	"github.com/topup-next/internal/models"
	"github.com/topup-next/internal/payment/wechatpay"
)

// CaptureRecharge 主动向网关查询交易状态并在已支付时立即入账。
// 查询失败或状态未定时静默降级：返回库中现状，不向用户暴露错误。
func (s *RechargeService) CaptureRecharge(ctx context.Context, userID uint, rechargeNo string) (*models.RechargeOrder, error) {
	order, err := s.GetRechargeForUser(userID, rechargeNo)
	if err != nil {
		return nil, err
	}
	if order.Status != constants.RechargeStatusPending {
		return order, nil
	}

	event := s.pollGateway(ctx, order)
	if event == nil || event.Kind != constants.EventKindSuccess {
		return order, nil
	}

	result, err := s.ApplyEvent(event)
	if err != nil {
		// 入账冲突留给回调通道重试，查询路径不上浮
		rechargeLogger("recharge_no", order.RechargeNo).Warnw("recharge_capture_apply_failed", "error", err)
		return order, nil
	}
	if result.Order != nil {
		return result.Order, nil
	}
	return order, nil
}

// SweepPendingRecharges 批量巡检滞留 pending 单：逐单查询网关，已支付的
// 走统一入账入口。返回本轮完成入账的笔数
func (s *RechargeService) SweepPendingRecharges(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	orders, err := s.rechargeRepo.ListPendingCreatedBefore(cutoff, limit)
	if err != nil {
		return 0, err
	}
	confirmed := 0
	for i := range orders {
		if ctx.Err() != nil {
			return confirmed, ctx.Err()
		}
		order := &orders[i]
		event := s.pollGateway(ctx, order)
		if event == nil || event.Kind != constants.EventKindSuccess {
			continue
		}
		result, err := s.ApplyEvent(event)
		if err != nil {
			rechargeLogger("recharge_no", order.RechargeNo).Warnw("recharge_sweep_apply_failed", "error", err)
			continue
		}
		if result.Outcome == OutcomeConfirmed {
			confirmed++
		}
	}
	return confirmed, nil
}

// pollGateway 查询网关并合成规范化事件；查询不可用时返回 nil
func (s *RechargeService) pollGateway(ctx context.Context, order *models.RechargeOrder) *CanonicalPaymentEvent {
	log := rechargeLogger(
		"recharge_no", order.RechargeNo,
		"channel", order.Channel,
	)
	switch order.Channel {
	case constants.ChannelAlipayWeb, constants.ChannelAlipayWap:
		if s.alipayGw == nil {
			return nil
		}
		result, err := s.alipayGw.QueryTrade(ctx, order.RechargeNo)
		if err != nil {
			log.Warnw("recharge_poll_alipay_failed", "error", err)
			return nil
		}
		if result.TradeStatus != constants.AlipayTradeStatusSuccess &&
			result.TradeStatus != constants.AlipayTradeStatusFinished {
			log.Debugw("recharge_poll_alipay_not_final", "trade_status", result.TradeStatus)
			return nil
		}
		amountCents, err := models.CentsFromDecimalString(result.TotalAmount)
		if err != nil {
			log.Warnw("recharge_poll_alipay_amount_invalid", "total_amount", result.TotalAmount)
			return nil
		}
		return &CanonicalPaymentEvent{
			RechargeNo:  order.RechargeNo,
			TradeNo:     result.TradeNo,
			AmountCents: amountCents,
			Kind:        constants.EventKindSuccess,
			Channel:     constants.GatewayAlipay,
		}
	case constants.ChannelWechatNative:
		if s.wechatGw == nil {
			return nil
		}
		result, err := s.wechatGw.QueryOrderByOutTradeNo(ctx, order.RechargeNo)
		if err != nil {
			log.Warnw("recharge_poll_wechat_failed", "error", err)
			return nil
		}
		if result.Status != wechatpay.StatusSuccess {
			log.Debugw("recharge_poll_wechat_not_final", "status", result.Status)
			return nil
		}
		return &CanonicalPaymentEvent{
			RechargeNo:  order.RechargeNo,
			TradeNo:     result.TransactionID,
			AmountCents: result.AmountCents,
			Kind:        constants.EventKindSuccess,
			Channel:     constants.GatewayWechat,
			PaidAt:      result.PaidAt,
		}
	default:
		return nil
	}
}
