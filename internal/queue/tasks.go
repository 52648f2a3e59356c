package queue

import (
	"encoding/json"

	"github.com/topup-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskRechargeSuccessNotify 充值入账成功通知任务
	TaskRechargeSuccessNotify = constants.TaskRechargeSuccessNotify
)

// RechargeSuccessNotifyPayload 充值成功通知任务载荷
type RechargeSuccessNotifyPayload struct {
	RechargeID        uint   `json:"recharge_id"`
	RechargeNo        string `json:"recharge_no"`
	UserID            uint   `json:"user_id"`
	AmountCents       int64  `json:"amount_cents"`
	BalanceAfterCents int64  `json:"balance_after_cents"`
	Channel           string `json:"channel"`
}

// NewRechargeSuccessNotifyTask 创建充值成功通知任务
func NewRechargeSuccessNotifyTask(payload RechargeSuccessNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRechargeSuccessNotify, body), nil
}
