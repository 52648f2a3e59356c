package service

import (
	"github.com/topup-next/internal/models"
	"github.com/topup-next/internal/repository"
)

// WalletService 余额查询服务
type WalletService struct {
	balanceRepo repository.BalanceRepository
}

// NewWalletService 创建余额查询服务
func NewWalletService(balanceRepo repository.BalanceRepository) *WalletService {
	return &WalletService{balanceRepo: balanceRepo}
}

// GetBalance 查询用户余额。账户不存在视为零余额
func (s *WalletService) GetBalance(userID uint) (*models.BalanceAccount, error) {
	account, err := s.balanceRepo.GetAccountByUserID(userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return &models.BalanceAccount{UserID: userID, BalanceCents: 0}, nil
	}
	return account, nil
}

// ListTransactions 分页查询用户余额流水
func (s *WalletService) ListTransactions(userID uint, txnType string, page, pageSize int) ([]models.BalanceTransaction, int64, error) {
	return s.balanceRepo.ListTransactions(repository.BalanceTxnListFilter{
		UserID:   userID,
		Type:     txnType,
		Page:     page,
		PageSize: pageSize,
	})
}
