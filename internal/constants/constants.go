package constants

// 充值单状态
const (
	RechargeStatusPending = "pending"
	RechargeStatusPaid    = "paid"
	RechargeStatusFailed  = "failed"
)

// 支付渠道
const (
	ChannelAlipayWeb    = "alipay-web"
	ChannelAlipayWap    = "alipay-wap"
	ChannelWechatNative = "wechat-native"
)

// 网关标识
const (
	GatewayAlipay = "alipay"
	GatewayWechat = "wechat"
)

// 余额流水
const (
	BalanceTxnTypeRecharge = "recharge"

	BalanceTxnDirectionIn  = "in"
	BalanceTxnDirectionOut = "out"
)

// 规范化支付事件类型
const (
	EventKindSuccess   = "success"
	EventKindIgnorable = "ignorable"
)

// 支付宝异步通知
const (
	AlipayTradeStatusSuccess      = "TRADE_SUCCESS"
	AlipayTradeStatusFinished     = "TRADE_FINISHED"
	AlipayTradeStatusClosed       = "TRADE_CLOSED"
	AlipayTradeStatusWaitBuyerPay = "WAIT_BUYER_PAY"

	// 支付宝要求回调应答为固定字面量
	AlipayCallbackSuccess = "success"
	AlipayCallbackFail    = "fail"
)

// 微信支付回调
const (
	WechatCallbackCodeSuccess = "SUCCESS"
	WechatCallbackCodeFail    = "FAIL"

	WechatEventTransactionSuccess = "TRANSACTION.SUCCESS"
)

// 用户状态
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 队列与任务
const (
	QueueDefault = "default"

	TaskRechargeSuccessNotify = "recharge:success_notify"
)

// 币种仅作展示透传，金额运算一律使用整数分
const (
	CurrencyDefault = "CNY"
)
