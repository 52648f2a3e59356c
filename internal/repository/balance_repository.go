package repository

import (
	"errors"
	"strings"

	"github.com/topup-next/internal/models"

	"gorm.io/gorm"
)

// BalanceRepository 余额数据访问接口
type BalanceRepository interface {
	GetAccountByUserID(userID uint) (*models.BalanceAccount, error)
	GetTransactionByReference(reference string) (*models.BalanceTransaction, error)
	ListTransactions(filter BalanceTxnListFilter) ([]models.BalanceTransaction, int64, error)
}

// GormBalanceRepository GORM 余额仓储实现
type GormBalanceRepository struct {
	db *gorm.DB
}

// NewBalanceRepository 创建余额仓储
func NewBalanceRepository(db *gorm.DB) *GormBalanceRepository {
	return &GormBalanceRepository{db: db}
}

// GetAccountByUserID 按用户ID获取余额账户
func (r *GormBalanceRepository) GetAccountByUserID(userID uint) (*models.BalanceAccount, error) {
	if userID == 0 {
		return nil, nil
	}
	var account models.BalanceAccount
	if err := r.db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetTransactionByReference 按参考号获取流水
func (r *GormBalanceRepository) GetTransactionByReference(reference string) (*models.BalanceTransaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil
	}
	var txn models.BalanceTransaction
	if err := r.db.Where("reference = ?", reference).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// BalanceTxnListFilter 流水列表过滤
type BalanceTxnListFilter struct {
	UserID   uint
	Type     string
	Page     int
	PageSize int
}

// ListTransactions 分页查询余额流水
func (r *GormBalanceRepository) ListTransactions(filter BalanceTxnListFilter) ([]models.BalanceTransaction, int64, error) {
	query := r.db.Model(&models.BalanceTransaction{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var txns []models.BalanceTransaction
	if err := query.Order("id DESC").Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}
