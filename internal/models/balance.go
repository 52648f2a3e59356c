package models

import (
	"time"
)

// BalanceAccount 用户余额账户。余额只在确认充值的事务内变更
type BalanceAccount struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	UserID       uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	BalanceCents int64     `gorm:"not null;default:0" json:"balance_cents"` // 当前余额（分），恒 >= 0
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName 指定表名
func (BalanceAccount) TableName() string {
	return "balance_accounts"
}

// BalanceTransaction 余额流水。Reference 唯一索引保证同一笔充值只入账一次
type BalanceTransaction struct {
	ID                 uint      `gorm:"primarykey" json:"id"`
	UserID             uint      `gorm:"index;not null" json:"user_id"`
	Type               string    `gorm:"size:32;not null" json:"type"`                  // recharge
	Direction          string    `gorm:"size:8;not null" json:"direction"`              // in / out
	AmountCents        int64     `gorm:"not null" json:"amount_cents"`                  // 带符号变动金额（分）
	BalanceBeforeCents int64     `gorm:"not null" json:"balance_before_cents"`
	BalanceAfterCents  int64     `gorm:"not null" json:"balance_after_cents"`
	RechargeID         *uint     `gorm:"index" json:"recharge_id"`
	Reference          string    `gorm:"uniqueIndex;size:64;not null" json:"reference"` // 幂等键，如 recharge:<id>:credit
	Remark             string    `gorm:"size:255;default:''" json:"remark"`
	CreatedAt          time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (BalanceTransaction) TableName() string {
	return "balance_transactions"
}
