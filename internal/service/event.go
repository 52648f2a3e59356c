package service

import (
	"net/url"
	"time"

	"github.com/topup-next/internal/constants"
)

// Notification 网关异步通知的原始载荷。支付宝为表单键值对，
// 微信为 JSON body + 签名头
type Notification struct {
	Form    url.Values
	Headers map[string]string
	Body    []byte
}

// CanonicalPaymentEvent 规范化支付事件。只有验签通过的通知才会
// 产生事件；不可验证的通知以错误形式上浮，永远不会触达对账器
type CanonicalPaymentEvent struct {
	RechargeNo  string // 充值单号（out_trade_no）
	TradeNo     string // 网关流水号
	AmountCents int64
	Kind        string // success / ignorable
	Channel     string
	PaidAt      *time.Time
}

// IsSuccess 是否成功事件
func (e *CanonicalPaymentEvent) IsSuccess() bool {
	return e != nil && e.Kind == constants.EventKindSuccess
}
