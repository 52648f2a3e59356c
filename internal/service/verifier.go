package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/topup-next/internal/constants"
	"github.com/topup-next/internal/logger"
	"github.com/topup-next/internal/models"
	"github.com/topup-next/internal/payment/wechatpay"
)

// NotificationVerifier 通知校验器。无状态分类器：验签通过产出规范化
// 事件，验签失败返回类型化错误，两者不会混淆
type NotificationVerifier interface {
	VerifyNotification(ctx context.Context, n Notification) (*CanonicalPaymentEvent, error)
}

// AlipayCallbackVerifier 支付宝回调验签依赖
type AlipayCallbackVerifier interface {
	VerifyCallback(form map[string][]string) error
}

// WechatWebhookDecoder 微信回调验签解密依赖
type WechatWebhookDecoder interface {
	VerifyAndDecodeWebhook(ctx context.Context, headers map[string]string, body []byte) (*wechatpay.WebhookResult, error)
}

// AlipayVerifier 支付宝通知校验器
type AlipayVerifier struct {
	gateway    AlipayCallbackVerifier
	mockNotify bool
}

// NewAlipayVerifier 创建支付宝通知校验器
func NewAlipayVerifier(gateway AlipayCallbackVerifier, mockNotify bool) *AlipayVerifier {
	return &AlipayVerifier{gateway: gateway, mockNotify: mockNotify}
}

// VerifyNotification 验签并归一化支付宝异步通知
func (v *AlipayVerifier) VerifyNotification(ctx context.Context, n Notification) (*CanonicalPaymentEvent, error) {
	if len(n.Form) == 0 {
		return nil, fmt.Errorf("%w: empty form", ErrNotifyMalformed)
	}
	rechargeNo := strings.TrimSpace(n.Form.Get("out_trade_no"))
	if rechargeNo == "" {
		return nil, fmt.Errorf("%w: out_trade_no is required", ErrNotifyMalformed)
	}

	if v.mockNotify {
		logger.Warnw("mock_notify_alipay_verify_bypassed",
			"recharge_no", rechargeNo,
		)
	} else {
		if v.gateway == nil {
			return nil, ErrGatewayUnavailable
		}
		if err := v.gateway.VerifyCallback(n.Form); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSignatureFailed, err)
		}
	}

	tradeStatus := strings.TrimSpace(n.Form.Get("trade_status"))
	event := &CanonicalPaymentEvent{
		RechargeNo: rechargeNo,
		TradeNo:    strings.TrimSpace(n.Form.Get("trade_no")),
		Channel:    constants.GatewayAlipay,
	}

	switch tradeStatus {
	case constants.AlipayTradeStatusSuccess, constants.AlipayTradeStatusFinished:
		amountCents, err := models.CentsFromDecimalString(n.Form.Get("total_amount"))
		if err != nil {
			return nil, fmt.Errorf("%w: total_amount invalid", ErrNotifyMalformed)
		}
		event.Kind = constants.EventKindSuccess
		event.AmountCents = amountCents
	default:
		// WAIT_BUYER_PAY、TRADE_CLOSED 等非终态成功通知不触发任何状态变更
		event.Kind = constants.EventKindIgnorable
	}
	return event, nil
}

// WechatVerifier 微信通知校验器
type WechatVerifier struct {
	decoder    WechatWebhookDecoder
	mockNotify bool
}

// NewWechatVerifier 创建微信通知校验器
func NewWechatVerifier(decoder WechatWebhookDecoder, mockNotify bool) *WechatVerifier {
	return &WechatVerifier{decoder: decoder, mockNotify: mockNotify}
}

var wechatRequiredHeaders = []string{
	"Wechatpay-Serial",
	"Wechatpay-Signature",
	"Wechatpay-Timestamp",
	"Wechatpay-Nonce",
}

// VerifyNotification 验签、解密并归一化微信支付回调
func (v *WechatVerifier) VerifyNotification(ctx context.Context, n Notification) (*CanonicalPaymentEvent, error) {
	if len(n.Body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrNotifyMalformed)
	}

	if v.mockNotify {
		return v.mockEvent(n.Body)
	}

	for _, key := range wechatRequiredHeaders {
		if headerValue(n.Headers, key) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingHeaders, key)
		}
	}
	if v.decoder == nil {
		return nil, ErrGatewayUnavailable
	}

	result, err := v.decoder.VerifyAndDecodeWebhook(ctx, n.Headers, n.Body)
	if err != nil {
		if errors.Is(err, wechatpay.ErrDecryptFailed) {
			return nil, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrSignatureFailed, err)
	}
	return wechatResultToEvent(result), nil
}

// mockEvent 联调模式：跳过验签，直接把 body 当作明文交易数据
func (v *WechatVerifier) mockEvent(body []byte) (*CanonicalPaymentEvent, error) {
	var plain struct {
		OutTradeNo    string `json:"out_trade_no"`
		TransactionID string `json:"transaction_id"`
		TradeState    string `json:"trade_state"`
		Amount        struct {
			Total int64 `json:"total"`
		} `json:"amount"`
	}
	if err := json.Unmarshal(body, &plain); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotifyMalformed, err)
	}
	if strings.TrimSpace(plain.OutTradeNo) == "" {
		return nil, fmt.Errorf("%w: out_trade_no is required", ErrNotifyMalformed)
	}
	logger.Warnw("mock_notify_wechat_verify_bypassed",
		"recharge_no", plain.OutTradeNo,
	)

	event := &CanonicalPaymentEvent{
		RechargeNo:  strings.TrimSpace(plain.OutTradeNo),
		TradeNo:     strings.TrimSpace(plain.TransactionID),
		AmountCents: plain.Amount.Total,
		Channel:     constants.GatewayWechat,
		Kind:        constants.EventKindIgnorable,
	}
	if status, ok := wechatpay.ToTradeStatus(plain.TradeState); ok && status == wechatpay.StatusSuccess {
		event.Kind = constants.EventKindSuccess
	}
	return event, nil
}

func wechatResultToEvent(result *wechatpay.WebhookResult) *CanonicalPaymentEvent {
	event := &CanonicalPaymentEvent{
		RechargeNo:  result.OutTradeNo,
		TradeNo:     result.TransactionID,
		AmountCents: result.AmountCents,
		Channel:     constants.GatewayWechat,
		PaidAt:      result.PaidAt,
		Kind:        constants.EventKindIgnorable,
	}
	// 只有支付成功事件触发入账，其余生命周期通知一律忽略
	if strings.EqualFold(result.EventType, constants.WechatEventTransactionSuccess) &&
		result.Status == wechatpay.StatusSuccess {
		event.Kind = constants.EventKindSuccess
	}
	return event
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(strings.TrimSpace(k), key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
