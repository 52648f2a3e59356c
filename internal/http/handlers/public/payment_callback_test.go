package public

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/topup-next/internal/config"
	"github.com/topup-next/internal/constants"
	"github.com/topup-next/internal/models"
	"github.com/topup-next/internal/provider"
	"github.com/topup-next/internal/repository"
	"github.com/topup-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// 联调模式下的回调链路测试：跳过验签，走完整的识别、归一化、对账入账与应答
func setupCallbackTest(t *testing.T) (*Handler, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:callback_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.RechargeOrder{},
		&models.BalanceAccount{},
		&models.BalanceTransaction{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := &config.Config{Payment: config.PaymentConfig{MockNotify: true}}
	rechargeRepo := repository.NewRechargeRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	container := &provider.Container{
		Config:          cfg,
		RechargeRepo:    rechargeRepo,
		BalanceRepo:     balanceRepo,
		RechargeService: service.NewRechargeService(cfg, rechargeRepo, balanceRepo, nil, nil, nil),
		AlipayVerifier:  service.NewAlipayVerifier(nil, true),
		WechatVerifier:  service.NewWechatVerifier(nil, true),
	}
	return New(container), db
}

func seedCallbackOrder(t *testing.T, db *gorm.DB, rechargeNo string, amountCents int64) models.RechargeOrder {
	t.Helper()
	order := models.RechargeOrder{
		RechargeNo:  rechargeNo,
		UserID:      61,
		AmountCents: amountCents,
		Currency:    constants.CurrencyDefault,
		Channel:     constants.ChannelAlipayWeb,
		Status:      constants.RechargeStatusPending,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func postAlipayCallback(h *Handler, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Request = req
	h.PaymentCallback(c)
	return w
}

func postWechatCallback(h *Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	h.PaymentCallback(c)
	return w
}

func TestPaymentCallbackRejectUnknownPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", strings.NewReader(`{"unexpected":true}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h := &Handler{}
	h.PaymentCallback(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != constants.AlipayCallbackFail {
		t.Fatalf("expected body %q, got %q", constants.AlipayCallbackFail, got)
	}
}

func TestAlipayCallbackConfirmsOrder(t *testing.T) {
	h, db := setupCallbackTest(t)
	order := seedCallbackOrder(t, db, "R-cb-ali-1", 5000)

	form := url.Values{}
	form.Set("out_trade_no", order.RechargeNo)
	form.Set("trade_no", "2026082822001400001")
	form.Set("trade_status", constants.AlipayTradeStatusSuccess)
	form.Set("total_amount", "50.00")

	w := postAlipayCallback(h, form)
	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != constants.AlipayCallbackSuccess {
		t.Fatalf("body want %q got %q", constants.AlipayCallbackSuccess, got)
	}

	var fresh models.RechargeOrder
	if err := db.First(&fresh, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if fresh.Status != constants.RechargeStatusPaid {
		t.Fatalf("order status want paid got %s", fresh.Status)
	}
	var account models.BalanceAccount
	if err := db.Where("user_id = ?", order.UserID).First(&account).Error; err != nil {
		t.Fatalf("load account failed: %v", err)
	}
	if account.BalanceCents != 5000 {
		t.Fatalf("balance want 5000 got %d", account.BalanceCents)
	}
}

func TestAlipayCallbackReplayAcksSuccess(t *testing.T) {
	h, db := setupCallbackTest(t)
	order := seedCallbackOrder(t, db, "R-cb-ali-2", 1000)

	form := url.Values{}
	form.Set("out_trade_no", order.RechargeNo)
	form.Set("trade_no", "2026082822001400002")
	form.Set("trade_status", constants.AlipayTradeStatusSuccess)
	form.Set("total_amount", "10.00")

	for i := 0; i < 3; i++ {
		w := postAlipayCallback(h, form)
		if got := strings.TrimSpace(w.Body.String()); got != constants.AlipayCallbackSuccess {
			t.Fatalf("replay %d body want %q got %q", i, constants.AlipayCallbackSuccess, got)
		}
	}

	var count int64
	if err := db.Model(&models.BalanceTransaction{}).Count(&count).Error; err != nil {
		t.Fatalf("count transactions failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("transaction count want 1 got %d", count)
	}
}

func TestAlipayCallbackAmountMismatchAcksFail(t *testing.T) {
	h, db := setupCallbackTest(t)
	order := seedCallbackOrder(t, db, "R-cb-ali-3", 5000)

	form := url.Values{}
	form.Set("out_trade_no", order.RechargeNo)
	form.Set("trade_status", constants.AlipayTradeStatusSuccess)
	form.Set("total_amount", "49.99")

	w := postAlipayCallback(h, form)
	// 应答体为 fail，但 HTTP 状态仍是 200，语义交给网关重试机制
	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != constants.AlipayCallbackFail {
		t.Fatalf("body want %q got %q", constants.AlipayCallbackFail, got)
	}

	var fresh models.RechargeOrder
	if err := db.First(&fresh, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if fresh.Status != constants.RechargeStatusPending {
		t.Fatalf("order status want pending got %s", fresh.Status)
	}
}

func TestAlipayCallbackIgnorableStatusAcksSuccess(t *testing.T) {
	h, db := setupCallbackTest(t)
	order := seedCallbackOrder(t, db, "R-cb-ali-4", 2000)

	form := url.Values{}
	form.Set("out_trade_no", order.RechargeNo)
	form.Set("trade_status", constants.AlipayTradeStatusWaitBuyerPay)

	w := postAlipayCallback(h, form)
	if got := strings.TrimSpace(w.Body.String()); got != constants.AlipayCallbackSuccess {
		t.Fatalf("body want %q got %q", constants.AlipayCallbackSuccess, got)
	}

	var fresh models.RechargeOrder
	if err := db.First(&fresh, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if fresh.Status != constants.RechargeStatusPending {
		t.Fatalf("order status want pending got %s", fresh.Status)
	}
}

func TestWechatCallbackConfirmsOrder(t *testing.T) {
	h, db := setupCallbackTest(t)
	order := seedCallbackOrder(t, db, "R-cb-wx-1", 3000)

	body := fmt.Sprintf(`{"out_trade_no":%q,"transaction_id":"420000cb1","trade_state":"SUCCESS","amount":{"total":3000}}`, order.RechargeNo)
	w := postWechatCallback(h, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	var ack struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack failed: %v", err)
	}
	if ack.Code != constants.WechatCallbackCodeSuccess {
		t.Fatalf("ack code want %s got %s", constants.WechatCallbackCodeSuccess, ack.Code)
	}

	var fresh models.RechargeOrder
	if err := db.First(&fresh, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if fresh.Status != constants.RechargeStatusPaid {
		t.Fatalf("order status want paid got %s", fresh.Status)
	}
	if fresh.ProviderRef != "420000cb1" {
		t.Fatalf("provider_ref want 420000cb1 got %s", fresh.ProviderRef)
	}
}

func TestWechatCallbackUnknownOrderAcksSuccess(t *testing.T) {
	h, _ := setupCallbackTest(t)

	// 单号不存在仍应答成功，避免网关重试风暴
	body := `{"out_trade_no":"R-cb-missing","transaction_id":"420000cb2","trade_state":"SUCCESS","amount":{"total":100}}`
	w := postWechatCallback(h, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	var ack struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack failed: %v", err)
	}
	if ack.Code != constants.WechatCallbackCodeSuccess {
		t.Fatalf("ack code want %s got %s", constants.WechatCallbackCodeSuccess, ack.Code)
	}
}
