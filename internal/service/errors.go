package service

import "errors"

// 校验器错误
var (
	ErrSignatureFailed = errors.New("notification signature verification failed")
	ErrMissingHeaders  = errors.New("notification required headers missing")
	ErrDecryptFailed   = errors.New("notification resource decrypt failed")
	ErrNotifyMalformed = errors.New("notification payload malformed")
)

// 对账错误
var (
	ErrRechargeNotFound     = errors.New("recharge order not found")
	ErrRechargeStateInvalid = errors.New("recharge order state invalid")
	ErrAmountMismatch       = errors.New("recharge amount mismatch")
	ErrConfirmFailed        = errors.New("recharge confirm failed")
)

// 充值下单错误
var (
	ErrChannelInvalid     = errors.New("recharge channel invalid")
	ErrChannelDisabled    = errors.New("recharge channel disabled")
	ErrAmountInvalid      = errors.New("recharge amount invalid")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// 用户认证错误
var (
	ErrInvalidEmail       = errors.New("email invalid")
	ErrEmailExists        = errors.New("email already registered")
	ErrPasswordTooWeak    = errors.New("password too weak")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user disabled")
	ErrNotFound           = errors.New("record not found")
)
