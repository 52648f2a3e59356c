package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/topup-next/internal/constants"
	"github.com/topup-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Confirm 结果分类
const (
	ConfirmApplied        = "applied"         // 本次调用完成了 pending -> paid 迁移并入账
	ConfirmDuplicate      = "duplicate"       // 订单已是 paid，幂等重放
	ConfirmStateInvalid   = "state_invalid"   // 订单处于 failed 等不可入账状态
	ConfirmAmountMismatch = "amount_mismatch" // 订单 pending 但金额与事件不符
)

// ConfirmResult 确认入账结果
type ConfirmResult struct {
	Status            string
	Order             models.RechargeOrder
	BalanceAfterCents int64 // 仅 ConfirmApplied 时有意义
}

// RechargeRepository 充值单数据访问接口
type RechargeRepository interface {
	Create(order *models.RechargeOrder) error
	Update(order *models.RechargeOrder) error
	GetByRechargeNo(rechargeNo string) (*models.RechargeOrder, error)
	GetByRechargeNoAndUser(rechargeNo string, userID uint) (*models.RechargeOrder, error)
	ListByUser(filter RechargeListFilter) ([]models.RechargeOrder, int64, error)
	ListPendingCreatedBefore(cutoff time.Time, limit int) ([]models.RechargeOrder, error)
	ConfirmIfPending(orderID uint, tradeNo string, expectedAmountCents int64) (*ConfirmResult, error)
	WithTx(tx *gorm.DB) *GormRechargeRepository
}

// GormRechargeRepository GORM 充值仓储实现
type GormRechargeRepository struct {
	db *gorm.DB
}

// NewRechargeRepository 创建充值仓储
func NewRechargeRepository(db *gorm.DB) *GormRechargeRepository {
	return &GormRechargeRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRechargeRepository) WithTx(tx *gorm.DB) *GormRechargeRepository {
	if tx == nil {
		return r
	}
	return &GormRechargeRepository{db: tx}
}

// Create 创建充值单
func (r *GormRechargeRepository) Create(order *models.RechargeOrder) error {
	return r.db.Create(order).Error
}

// Update 更新充值单
func (r *GormRechargeRepository) Update(order *models.RechargeOrder) error {
	return r.db.Save(order).Error
}

// GetByRechargeNo 按充值单号查询
func (r *GormRechargeRepository) GetByRechargeNo(rechargeNo string) (*models.RechargeOrder, error) {
	rechargeNo = strings.TrimSpace(rechargeNo)
	if rechargeNo == "" {
		return nil, nil
	}
	var order models.RechargeOrder
	if err := r.db.Where("recharge_no = ?", rechargeNo).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByRechargeNoAndUser 按充值单号和归属用户查询
func (r *GormRechargeRepository) GetByRechargeNoAndUser(rechargeNo string, userID uint) (*models.RechargeOrder, error) {
	rechargeNo = strings.TrimSpace(rechargeNo)
	if rechargeNo == "" || userID == 0 {
		return nil, nil
	}
	var order models.RechargeOrder
	if err := r.db.Where("recharge_no = ? AND user_id = ?", rechargeNo, userID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// RechargeListFilter 充值单列表过滤
type RechargeListFilter struct {
	UserID   uint
	Status   string
	Page     int
	PageSize int
}

// ListByUser 分页查询用户充值单
func (r *GormRechargeRepository) ListByUser(filter RechargeListFilter) ([]models.RechargeOrder, int64, error) {
	query := r.db.Model(&models.RechargeOrder{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var orders []models.RechargeOrder
	if err := query.Order("id DESC").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListPendingCreatedBefore 查询创建时间早于 cutoff 的待支付充值单，
// 供后台巡检主动向网关对账
func (r *GormRechargeRepository) ListPendingCreatedBefore(cutoff time.Time, limit int) ([]models.RechargeOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []models.RechargeOrder
	err := r.db.Where("status = ? AND created_at < ?", constants.RechargeStatusPending, cutoff).
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// CreditReference 充值入账的幂等参考号
func CreditReference(orderID uint) string {
	return fmt.Sprintf("recharge:%d:credit", orderID)
}

// ConfirmIfPending 在单个事务内完成 pending -> paid 迁移与余额入账。
//
// 串行化点是带状态与金额条件的 UPDATE：并发调用（含跨进程）只有一个
// 能命中 RowsAffected=1，其余按回读结果归类为 duplicate 等。流水表的
// Reference 唯一索引是兜底，违反时整个事务回滚，不会出现半程状态。
func (r *GormRechargeRepository) ConfirmIfPending(orderID uint, tradeNo string, expectedAmountCents int64) (*ConfirmResult, error) {
	if orderID == 0 {
		return nil, fmt.Errorf("confirm recharge: order id required")
	}

	var result ConfirmResult
	err := r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		updates := map[string]interface{}{
			"status":       constants.RechargeStatusPaid,
			"provider_ref": tradeNo,
			"paid_at":      now,
			"callback_at":  now,
			"updated_at":   now,
		}
		res := tx.Model(&models.RechargeOrder{}).
			Where("id = ? AND status = ? AND amount_cents = ?",
				orderID, constants.RechargeStatusPending, expectedAmountCents).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}

		var order models.RechargeOrder
		if err := tx.First(&order, orderID).Error; err != nil {
			return err
		}
		result.Order = order

		if res.RowsAffected == 0 {
			switch {
			case order.Status == constants.RechargeStatusPaid:
				result.Status = ConfirmDuplicate
			case order.Status != constants.RechargeStatusPending:
				result.Status = ConfirmStateInvalid
			default:
				result.Status = ConfirmAmountMismatch
			}
			return nil
		}

		account, err := r.lockOrCreateAccount(tx, order.UserID)
		if err != nil {
			return err
		}

		before := account.BalanceCents
		after := before + order.AmountCents
		txn := models.BalanceTransaction{
			UserID:             order.UserID,
			Type:               constants.BalanceTxnTypeRecharge,
			Direction:          constants.BalanceTxnDirectionIn,
			AmountCents:        order.AmountCents,
			BalanceBeforeCents: before,
			BalanceAfterCents:  after,
			RechargeID:         &order.ID,
			Reference:          CreditReference(order.ID),
			Remark:             order.RechargeNo,
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.BalanceAccount{}).
			Where("id = ?", account.ID).
			Updates(map[string]interface{}{
				"balance_cents": after,
				"updated_at":    now,
			}).Error; err != nil {
			return err
		}

		result.Status = ConfirmApplied
		result.BalanceAfterCents = after
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// lockOrCreateAccount 加行锁获取余额账户，不存在则先建后锁
func (r *GormRechargeRepository) lockOrCreateAccount(tx *gorm.DB, userID uint) (*models.BalanceAccount, error) {
	var account models.BalanceAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	account = models.BalanceAccount{UserID: userID, BalanceCents: 0}
	if err := tx.Create(&account).Error; err != nil {
		return nil, err
	}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}
