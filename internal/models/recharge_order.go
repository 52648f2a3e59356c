package models

import (
	"time"
)

// RechargeOrder 充值单。终态（paid/failed）不可再变更，记录永不删除
type RechargeOrder struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	RechargeNo  string     `gorm:"uniqueIndex;size:64;not null" json:"recharge_no"` // 对外充值单号，传给网关的 out_trade_no
	UserID      uint       `gorm:"index;not null" json:"user_id"`
	AmountCents int64      `gorm:"not null" json:"amount_cents"`               // 应付金额（分）
	Currency    string     `gorm:"size:8;default:'CNY'" json:"currency"`       // 展示币种，不参与运算
	Channel     string     `gorm:"size:32;not null" json:"channel"`            // alipay-web / alipay-wap / wechat-native
	Status      string     `gorm:"size:16;default:'pending'" json:"status"`    // pending / paid / failed
	ProviderRef string     `gorm:"size:128;default:''" json:"provider_ref"`    // 网关流水号（支付宝 trade_no / 微信 transaction_id）
	PayURL      string     `gorm:"size:2048;default:''" json:"pay_url"`        // 跳转支付地址（支付宝）
	QRCode      string     `gorm:"size:512;default:''" json:"qr_code"`         // Native 扫码地址（微信）
	FailReason  string     `gorm:"size:255;default:''" json:"fail_reason"`
	PaidAt      *time.Time `json:"paid_at"`
	CallbackAt  *time.Time `json:"callback_at"` // 最近一次收到网关回调的时间
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (RechargeOrder) TableName() string {
	return "recharge_orders"
}

// IsPending 是否待支付
func (r *RechargeOrder) IsPending() bool {
	return r.Status == "pending"
}

// IsPaid 是否已入账
func (r *RechargeOrder) IsPaid() bool {
	return r.Status == "paid"
}
