package main

import (
	"fmt"
	"time"

	"github.com/topup-next/internal/config"
	"github.com/topup-next/internal/constants"
	"github.com/topup-next/internal/logger"
	"github.com/topup-next/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// 本地联调用的演示数据：两个用户、一个有余额的钱包和几笔不同状态的充值单。
// 密码统一为 password123。
func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		stdLog.Fatalf("Failed to hash demo password: %v", err)
	}

	// 添加演示用户
	users := []models.User{
		{Email: "alice@example.com", PasswordHash: string(passwordHash), DisplayName: "alice", Status: constants.UserStatusActive},
		{Email: "bob@example.com", PasswordHash: string(passwordHash), DisplayName: "bob", Status: constants.UserStatusActive},
	}
	userIDs := map[string]uint{}
	for _, u := range users {
		var existing models.User
		if err := models.DB.Where("email = ?", u.Email).First(&existing).Error; err != nil {
			if err := models.DB.Create(&u).Error; err != nil {
				stdLog.Printf("Failed to create user %s: %v", u.Email, err)
				continue
			}
			stdLog.Printf("Created user: %s", u.Email)
			userIDs[u.Email] = u.ID
		} else {
			stdLog.Printf("User already exists: %s", u.Email)
			userIDs[u.Email] = existing.ID
		}
	}

	aliceID := userIDs["alice@example.com"]
	bobID := userIDs["bob@example.com"]
	if aliceID == 0 || bobID == 0 {
		stdLog.Fatalf("Demo users missing, aborting")
	}

	// alice 预置一笔已入账的充值：钱包余额 + 充值单 + 对应流水
	paidAt := time.Now().Add(-24 * time.Hour)
	paidOrder := models.RechargeOrder{
		RechargeNo:  "R20260801120000000001",
		UserID:      aliceID,
		AmountCents: 5000,
		Currency:    constants.CurrencyDefault,
		Channel:     constants.ChannelAlipayWeb,
		Status:      constants.RechargeStatusPaid,
		ProviderRef: "2026080122001400001234567890",
		PaidAt:      &paidAt,
	}
	if created := createRechargeIfAbsent(stdLog.Printf, &paidOrder); created {
		account := models.BalanceAccount{UserID: aliceID, BalanceCents: paidOrder.AmountCents}
		if err := models.DB.Create(&account).Error; err != nil {
			stdLog.Printf("Failed to create balance account for alice: %v", err)
		}
		txn := models.BalanceTransaction{
			UserID:             aliceID,
			Type:               constants.BalanceTxnTypeRecharge,
			Direction:          constants.BalanceTxnDirectionIn,
			AmountCents:        paidOrder.AmountCents,
			BalanceBeforeCents: 0,
			BalanceAfterCents:  paidOrder.AmountCents,
			RechargeID:         &paidOrder.ID,
			Reference:          fmt.Sprintf("recharge:%d:credit", paidOrder.ID),
			Remark:             "seed demo credit",
			CreatedAt:          paidAt,
		}
		if err := models.DB.Create(&txn).Error; err != nil {
			stdLog.Printf("Failed to create balance transaction for alice: %v", err)
		}
	}

	// bob 预置一笔待支付充值单，便于联调回调 / 主动查询路径
	pendingOrder := models.RechargeOrder{
		RechargeNo:  "R20260828090000000002",
		UserID:      bobID,
		AmountCents: 1000,
		Currency:    constants.CurrencyDefault,
		Channel:     constants.ChannelWechatNative,
		Status:      constants.RechargeStatusPending,
		QRCode:      "weixin://wxpay/bizpayurl?pr=demo0000001",
	}
	createRechargeIfAbsent(stdLog.Printf, &pendingOrder)

	stdLog.Printf("Seed finished")
}

func createRechargeIfAbsent(printf func(string, ...interface{}), order *models.RechargeOrder) bool {
	var existing models.RechargeOrder
	if err := models.DB.Where("recharge_no = ?", order.RechargeNo).First(&existing).Error; err == nil {
		printf("Recharge order already exists: %s", order.RechargeNo)
		return false
	}
	if err := models.DB.Create(order).Error; err != nil {
		printf("Failed to create recharge order %s: %v", order.RechargeNo, err)
		return false
	}
	printf("Created recharge order: %s (%s)", order.RechargeNo, order.Status)
	return true
}
