package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/topup-next/internal/config"
	"github.com/topup-next/internal/constants"
	"github.com/topup-next/internal/logger"
	"github.com/topup-next/internal/models"
	"github.com/topup-next/internal/payment/alipay"
	"github.com/topup-next/internal/payment/wechatpay"
	"github.com/topup-next/internal/queue"
	"github.com/topup-next/internal/repository"

	"go.uber.org/zap"
)

// AlipayGateway 支付宝网关依赖
type AlipayGateway interface {
	AlipayCallbackVerifier
	CreatePagePay(input alipay.CreateInput) (*alipay.CreateResult, error)
	CreateWapPay(input alipay.CreateInput) (*alipay.CreateResult, error)
	QueryTrade(ctx context.Context, outTradeNo string) (*alipay.QueryResult, error)
}

// WechatGateway 微信支付网关依赖
type WechatGateway interface {
	WechatWebhookDecoder
	CreateNative(ctx context.Context, input wechatpay.CreateInput) (*wechatpay.CreateResult, error)
	QueryOrderByOutTradeNo(ctx context.Context, outTradeNo string) (*wechatpay.QueryResult, error)
}

// RechargeService 充值服务：下单、查询、对账入账、主动捕获
type RechargeService struct {
	cfg          *config.Config
	rechargeRepo repository.RechargeRepository
	balanceRepo  repository.BalanceRepository
	alipayGw     AlipayGateway // nil 表示渠道未配置
	wechatGw     WechatGateway
	queueClient  *queue.Client
}

// NewRechargeService 创建充值服务
func NewRechargeService(cfg *config.Config, rechargeRepo repository.RechargeRepository, balanceRepo repository.BalanceRepository, alipayGw AlipayGateway, wechatGw WechatGateway, queueClient *queue.Client) *RechargeService {
	return &RechargeService{
		cfg:          cfg,
		rechargeRepo: rechargeRepo,
		balanceRepo:  balanceRepo,
		alipayGw:     alipayGw,
		wechatGw:     wechatGw,
		queueClient:  queueClient,
	}
}

// CreateRechargeInput 创建充值单输入
type CreateRechargeInput struct {
	UserID      uint
	AmountCents int64
	Channel     string
}

// CreateRecharge 创建充值单并发起网关下单
func (s *RechargeService) CreateRecharge(ctx context.Context, input CreateRechargeInput) (*models.RechargeOrder, error) {
	if input.UserID == 0 {
		return nil, ErrNotFound
	}
	if err := s.validateAmount(input.AmountCents); err != nil {
		return nil, err
	}
	channel := strings.TrimSpace(input.Channel)
	if !isChannelSupported(channel) {
		return nil, ErrChannelInvalid
	}

	now := time.Now()
	order := &models.RechargeOrder{
		RechargeNo:  generateRechargeNo(),
		UserID:      input.UserID,
		AmountCents: input.AmountCents,
		Currency:    constants.CurrencyDefault,
		Channel:     channel,
		Status:      constants.RechargeStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	log := rechargeLogger(
		"recharge_no", order.RechargeNo,
		"user_id", order.UserID,
		"channel", channel,
		"amount_cents", order.AmountCents,
	)

	if err := s.initCheckout(ctx, order, log); err != nil {
		return nil, err
	}

	if err := s.rechargeRepo.Create(order); err != nil {
		log.Errorw("recharge_create_failed", "error", err)
		return nil, err
	}
	log.Infow("recharge_created")
	return order, nil
}

// initCheckout 按渠道发起网关下单并记录支付引导信息
func (s *RechargeService) initCheckout(ctx context.Context, order *models.RechargeOrder, log *zap.SugaredLogger) error {
	switch order.Channel {
	case constants.ChannelAlipayWeb, constants.ChannelAlipayWap:
		if s.alipayGw == nil {
			return s.checkoutUnavailable(order, log)
		}
		input := alipay.CreateInput{
			OutTradeNo: order.RechargeNo,
			Amount:     models.CentsToDecimalString(order.AmountCents),
			Subject:    "余额充值 " + order.RechargeNo,
		}
		var result *alipay.CreateResult
		var err error
		if order.Channel == constants.ChannelAlipayWeb {
			result, err = s.alipayGw.CreatePagePay(input)
		} else {
			result, err = s.alipayGw.CreateWapPay(input)
		}
		if err != nil {
			log.Errorw("recharge_alipay_create_failed", "error", err)
			return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		order.PayURL = result.PayURL
	case constants.ChannelWechatNative:
		if s.wechatGw == nil {
			return s.checkoutUnavailable(order, log)
		}
		result, err := s.wechatGw.CreateNative(ctx, wechatpay.CreateInput{
			OutTradeNo:  order.RechargeNo,
			AmountCents: order.AmountCents,
			Description: "余额充值 " + order.RechargeNo,
		})
		if err != nil {
			log.Errorw("recharge_wechat_create_failed", "error", err)
			return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		order.QRCode = result.CodeURL
	default:
		return ErrChannelInvalid
	}
	return nil
}

// checkoutUnavailable 渠道未配置：联调模式允许创建无引导信息的订单
func (s *RechargeService) checkoutUnavailable(order *models.RechargeOrder, log *zap.SugaredLogger) error {
	if s.cfg != nil && s.cfg.Payment.MockNotify {
		log.Warnw("mock_notify_checkout_without_gateway")
		return nil
	}
	return ErrChannelDisabled
}

// GetRechargeForUser 查询当前用户充值单
func (s *RechargeService) GetRechargeForUser(userID uint, rechargeNo string) (*models.RechargeOrder, error) {
	order, err := s.rechargeRepo.GetByRechargeNoAndUser(rechargeNo, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrRechargeNotFound
	}
	return order, nil
}

// ListRechargesForUser 分页查询当前用户充值单
func (s *RechargeService) ListRechargesForUser(userID uint, status string, page, pageSize int) ([]models.RechargeOrder, int64, error) {
	return s.rechargeRepo.ListByUser(repository.RechargeListFilter{
		UserID:   userID,
		Status:   strings.TrimSpace(status),
		Page:     page,
		PageSize: pageSize,
	})
}

func (s *RechargeService) validateAmount(amountCents int64) error {
	if amountCents <= 0 {
		return ErrAmountInvalid
	}
	if s.cfg == nil {
		return nil
	}
	if s.cfg.Recharge.MinAmountCents > 0 && amountCents < s.cfg.Recharge.MinAmountCents {
		return ErrAmountInvalid
	}
	if s.cfg.Recharge.MaxAmountCents > 0 && amountCents > s.cfg.Recharge.MaxAmountCents {
		return ErrAmountInvalid
	}
	return nil
}

func isChannelSupported(channel string) bool {
	switch channel {
	case constants.ChannelAlipayWeb, constants.ChannelAlipayWap, constants.ChannelWechatNative:
		return true
	default:
		return false
	}
}

func generateRechargeNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("R%s%s", now, randNumeric(6))
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String()
}

func rechargeLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.S().With(kv...)
}
