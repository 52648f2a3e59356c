package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/topup-next/internal/config"
	"github.com/topup-next/internal/constants"
	"github.com/topup-next/internal/models"
	"github.com/topup-next/internal/payment/alipay"
	"github.com/topup-next/internal/payment/wechatpay"

	"gorm.io/gorm"
)

type fakeAlipayGateway struct {
	fakeAlipayCallbackVerifier
	createErr   error
	queryResult *alipay.QueryResult
	queryErr    error
	created     []alipay.CreateInput
}

func (f *fakeAlipayGateway) CreatePagePay(input alipay.CreateInput) (*alipay.CreateResult, error) {
	f.created = append(f.created, input)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &alipay.CreateResult{PayURL: "https://openapi.alipay.com/gateway.do?out_trade_no=" + input.OutTradeNo, OutTradeNo: input.OutTradeNo}, nil
}

func (f *fakeAlipayGateway) CreateWapPay(input alipay.CreateInput) (*alipay.CreateResult, error) {
	return f.CreatePagePay(input)
}

func (f *fakeAlipayGateway) QueryTrade(ctx context.Context, outTradeNo string) (*alipay.QueryResult, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryResult, nil
}

type fakeWechatGateway struct {
	fakeWechatDecoder
	createErr   error
	queryResult *wechatpay.QueryResult
	queryErr    error
}

func (f *fakeWechatGateway) CreateNative(ctx context.Context, input wechatpay.CreateInput) (*wechatpay.CreateResult, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &wechatpay.CreateResult{CodeURL: "weixin://wxpay/bizpayurl?pr=" + input.OutTradeNo}, nil
}

func (f *fakeWechatGateway) QueryOrderByOutTradeNo(ctx context.Context, outTradeNo string) (*wechatpay.QueryResult, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryResult, nil
}

func setupRechargeServiceTest(t *testing.T, alipayGw AlipayGateway, wechatGw WechatGateway, mockNotify bool) (*RechargeService, *gorm.DB) {
	t.Helper()
	svc, db := setupReconcilerTest(t)
	svc.alipayGw = alipayGw
	svc.wechatGw = wechatGw
	svc.cfg = &config.Config{
		Recharge: config.RechargeConfig{MinAmountCents: 100, MaxAmountCents: 10000000},
		Payment:  config.PaymentConfig{MockNotify: mockNotify},
	}
	return svc, db
}

var rechargeNoPattern = regexp.MustCompile(`^R\d{20}$`)

func TestCreateRechargeAlipayWeb(t *testing.T) {
	gateway := &fakeAlipayGateway{}
	svc, db := setupRechargeServiceTest(t, gateway, nil, false)

	order, err := svc.CreateRecharge(context.Background(), CreateRechargeInput{
		UserID:      31,
		AmountCents: 5000,
		Channel:     constants.ChannelAlipayWeb,
	})
	if err != nil {
		t.Fatalf("create recharge failed: %v", err)
	}
	if !rechargeNoPattern.MatchString(order.RechargeNo) {
		t.Fatalf("recharge_no format unexpected: %s", order.RechargeNo)
	}
	if order.Status != constants.RechargeStatusPending {
		t.Fatalf("status want pending got %s", order.Status)
	}
	if order.PayURL == "" {
		t.Fatalf("pay_url not set")
	}
	if len(gateway.created) != 1 {
		t.Fatalf("gateway create calls want 1 got %d", len(gateway.created))
	}
	if gateway.created[0].Amount != "50.00" {
		t.Fatalf("gateway amount want 50.00 got %s", gateway.created[0].Amount)
	}

	var stored models.RechargeOrder
	if err := db.Where("recharge_no = ?", order.RechargeNo).First(&stored).Error; err != nil {
		t.Fatalf("load stored order failed: %v", err)
	}
	if stored.AmountCents != 5000 || stored.Currency != constants.CurrencyDefault {
		t.Fatalf("stored order unexpected: %+v", stored)
	}
}

func TestCreateRechargeWechatNative(t *testing.T) {
	svc, _ := setupRechargeServiceTest(t, nil, &fakeWechatGateway{}, false)

	order, err := svc.CreateRecharge(context.Background(), CreateRechargeInput{
		UserID:      32,
		AmountCents: 1000,
		Channel:     constants.ChannelWechatNative,
	})
	if err != nil {
		t.Fatalf("create recharge failed: %v", err)
	}
	if order.QRCode == "" {
		t.Fatalf("qr_code not set")
	}
}

func TestCreateRechargeValidation(t *testing.T) {
	svc, _ := setupRechargeServiceTest(t, &fakeAlipayGateway{}, nil, false)

	cases := []struct {
		name    string
		input   CreateRechargeInput
		wantErr error
	}{
		{"zero amount", CreateRechargeInput{UserID: 33, AmountCents: 0, Channel: constants.ChannelAlipayWeb}, ErrAmountInvalid},
		{"below min", CreateRechargeInput{UserID: 33, AmountCents: 99, Channel: constants.ChannelAlipayWeb}, ErrAmountInvalid},
		{"above max", CreateRechargeInput{UserID: 33, AmountCents: 10000001, Channel: constants.ChannelAlipayWeb}, ErrAmountInvalid},
		{"unknown channel", CreateRechargeInput{UserID: 33, AmountCents: 500, Channel: "paypal"}, ErrChannelInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateRecharge(context.Background(), tc.input); !errors.Is(err, tc.wantErr) {
				t.Fatalf("error want %v got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCreateRechargeChannelDisabled(t *testing.T) {
	svc, _ := setupRechargeServiceTest(t, nil, nil, false)

	_, err := svc.CreateRecharge(context.Background(), CreateRechargeInput{
		UserID:      34,
		AmountCents: 500,
		Channel:     constants.ChannelAlipayWeb,
	})
	if !errors.Is(err, ErrChannelDisabled) {
		t.Fatalf("error want ErrChannelDisabled got %v", err)
	}
}

func TestCreateRechargeMockWithoutGateway(t *testing.T) {
	// 联调模式下允许无网关下单，订单无支付引导信息
	svc, _ := setupRechargeServiceTest(t, nil, nil, true)

	order, err := svc.CreateRecharge(context.Background(), CreateRechargeInput{
		UserID:      35,
		AmountCents: 500,
		Channel:     constants.ChannelAlipayWeb,
	})
	if err != nil {
		t.Fatalf("create recharge failed: %v", err)
	}
	if order.PayURL != "" || order.QRCode != "" {
		t.Fatalf("mock order must have no checkout info: %+v", order)
	}
}

func TestCreateRechargeGatewayError(t *testing.T) {
	gateway := &fakeAlipayGateway{createErr: errors.New("gateway timeout")}
	svc, db := setupRechargeServiceTest(t, gateway, nil, false)

	_, err := svc.CreateRecharge(context.Background(), CreateRechargeInput{
		UserID:      36,
		AmountCents: 500,
		Channel:     constants.ChannelAlipayWeb,
	})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("error want ErrGatewayUnavailable got %v", err)
	}

	// 下单失败不落库
	var count int64
	if err := db.Model(&models.RechargeOrder{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("order count want 0 got %d", count)
	}
}

func TestCaptureRechargeConfirmsPaidOrder(t *testing.T) {
	gateway := &fakeAlipayGateway{queryResult: &alipay.QueryResult{
		OutTradeNo:  "R-cap-1",
		TradeNo:     "2026082822001400009",
		TradeStatus: constants.AlipayTradeStatusSuccess,
		TotalAmount: "20.00",
	}}
	svc, db := setupRechargeServiceTest(t, gateway, nil, false)
	seedPendingOrder(t, db, "R-cap-1", 41, 2000)

	order, err := svc.CaptureRecharge(context.Background(), 41, "R-cap-1")
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if order.Status != constants.RechargeStatusPaid {
		t.Fatalf("status want paid got %s", order.Status)
	}

	var account models.BalanceAccount
	if err := db.Where("user_id = ?", 41).First(&account).Error; err != nil {
		t.Fatalf("load account failed: %v", err)
	}
	if account.BalanceCents != 2000 {
		t.Fatalf("balance want 2000 got %d", account.BalanceCents)
	}
}

func TestCaptureRechargeNotFinalKeepsPending(t *testing.T) {
	gateway := &fakeAlipayGateway{queryResult: &alipay.QueryResult{
		OutTradeNo:  "R-cap-2",
		TradeStatus: constants.AlipayTradeStatusWaitBuyerPay,
	}}
	svc, db := setupRechargeServiceTest(t, gateway, nil, false)
	seedPendingOrder(t, db, "R-cap-2", 42, 2000)

	order, err := svc.CaptureRecharge(context.Background(), 42, "R-cap-2")
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if order.Status != constants.RechargeStatusPending {
		t.Fatalf("status want pending got %s", order.Status)
	}
}

func TestCaptureRechargeQueryErrorDegrades(t *testing.T) {
	gateway := &fakeAlipayGateway{queryErr: errors.New("gateway unreachable")}
	svc, db := setupRechargeServiceTest(t, gateway, nil, false)
	seedPendingOrder(t, db, "R-cap-3", 43, 2000)

	// 查询失败不上浮，返回库中现状
	order, err := svc.CaptureRecharge(context.Background(), 43, "R-cap-3")
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if order.Status != constants.RechargeStatusPending {
		t.Fatalf("status want pending got %s", order.Status)
	}
}

func TestCaptureRechargeWrongUser(t *testing.T) {
	svc, db := setupRechargeServiceTest(t, &fakeAlipayGateway{}, nil, false)
	seedPendingOrder(t, db, "R-cap-4", 44, 2000)

	_, err := svc.CaptureRecharge(context.Background(), 9999, "R-cap-4")
	if !errors.Is(err, ErrRechargeNotFound) {
		t.Fatalf("error want ErrRechargeNotFound got %v", err)
	}
}

func TestSweepPendingRecharges(t *testing.T) {
	gateway := &fakeWechatGateway{queryResult: &wechatpay.QueryResult{
		TransactionID: "420000sweep",
		Status:        wechatpay.StatusSuccess,
		AmountCents:   1500,
	}}
	svc, db := setupRechargeServiceTest(t, nil, gateway, false)

	order := models.RechargeOrder{
		RechargeNo:  "R-sweep-1",
		UserID:      51,
		AmountCents: 1500,
		Currency:    constants.CurrencyDefault,
		Channel:     constants.ChannelWechatNative,
		Status:      constants.RechargeStatusPending,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if err := db.Model(&models.RechargeOrder{}).Where("id = ?", order.ID).
		Update("created_at", time.Now().Add(-10*time.Minute)).Error; err != nil {
		t.Fatalf("backdate order failed: %v", err)
	}

	confirmed, err := svc.SweepPendingRecharges(context.Background(), 2*time.Minute, 100)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if confirmed != 1 {
		t.Fatalf("confirmed want 1 got %d", confirmed)
	}

	var fresh models.RechargeOrder
	if err := db.First(&fresh, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if fresh.Status != constants.RechargeStatusPaid {
		t.Fatalf("status want paid got %s", fresh.Status)
	}
	if fresh.ProviderRef != "420000sweep" {
		t.Fatalf("provider_ref want 420000sweep got %s", fresh.ProviderRef)
	}
}
