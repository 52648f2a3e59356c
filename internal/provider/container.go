package provider

import (
	"github.com/topup-next/internal/cache"
	"github.com/topup-next/internal/config"
	"github.com/topup-next/internal/logger"
	"github.com/topup-next/internal/models"
	"github.com/topup-next/internal/payment/alipay"
	"github.com/topup-next/internal/payment/wechatpay"
	"github.com/topup-next/internal/queue"
	"github.com/topup-next/internal/repository"
	"github.com/topup-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	UserRepo     repository.UserRepository
	RechargeRepo repository.RechargeRepository
	BalanceRepo  repository.BalanceRepository

	// Services
	UserAuthService *service.UserAuthService
	RechargeService *service.RechargeService
	WalletService   *service.WalletService

	// Verifiers（回调入口使用）
	AlipayVerifier *service.AlipayVerifier
	WechatVerifier *service.WechatVerifier
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.RechargeRepo = repository.NewRechargeRepository(db)
	c.BalanceRepo = repository.NewBalanceRepository(db)
}

func (c *Container) initServices() {
	alipayGw := c.buildAlipayGateway()
	wechatGw := c.buildWechatGateway()

	c.UserAuthService = service.NewUserAuthService(c.Config, c.UserRepo)
	c.RechargeService = service.NewRechargeService(c.Config, c.RechargeRepo, c.BalanceRepo, alipayGw, wechatGw, c.QueueClient)
	c.WalletService = service.NewWalletService(c.BalanceRepo)

	mockNotify := c.Config.Payment.MockNotify
	if alipayGw != nil || mockNotify {
		c.AlipayVerifier = service.NewAlipayVerifier(alipayGw, mockNotify)
	}
	if wechatGw != nil || mockNotify {
		c.WechatVerifier = service.NewWechatVerifier(wechatGw, mockNotify)
	}
}

// buildAlipayGateway 按配置构建支付宝网关客户端，未启用或配置缺失返回 nil
func (c *Container) buildAlipayGateway() service.AlipayGateway {
	payCfg := c.Config.Payment
	if !payCfg.Alipay.Enabled {
		return nil
	}
	client, err := alipay.NewClient(alipay.Config{
		AppID:           payCfg.Alipay.AppID,
		PrivateKey:      payCfg.Alipay.PrivateKey,
		AlipayPublicKey: payCfg.Alipay.AlipayPublicKey,
		GatewayURL:      payCfg.Alipay.GatewayURL,
		SignType:        payCfg.Alipay.SignType,
		NotifyURL:       payCfg.NotifyURL,
		ReturnURL:       payCfg.ReturnURL,
	})
	if err != nil {
		logger.Errorw("provider_init_alipay_failed", "error", err)
		return nil
	}
	return client
}

// buildWechatGateway 按配置构建微信支付网关客户端，未启用或配置缺失返回 nil
func (c *Container) buildWechatGateway() service.WechatGateway {
	payCfg := c.Config.Payment
	if !payCfg.Wechatpay.Enabled {
		return nil
	}
	client, err := wechatpay.NewClient(wechatpay.Config{
		AppID:              payCfg.Wechatpay.AppID,
		MerchantID:         payCfg.Wechatpay.MchID,
		MerchantSerialNo:   payCfg.Wechatpay.MchCertSerialNumber,
		MerchantPrivateKey: payCfg.Wechatpay.MchPrivateKey,
		APIV3Key:           payCfg.Wechatpay.APIv3Key,
		NotifyURL:          payCfg.NotifyURL,
	})
	if err != nil {
		logger.Errorw("provider_init_wechatpay_failed", "error", err)
		return nil
	}
	return client
}
