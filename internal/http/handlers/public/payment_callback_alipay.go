package public

import (
	"strings"

	"github.com/topup-next/internal/constants"
	"github.com/topup-next/internal/service"

	"github.com/gin-gonic/gin"
)

// HandleAlipayCallback 处理支付宝异步通知。返回 true 表示请求已被
// 本渠道消化并完成应答。
func (h *Handler) HandleAlipayCallback(c *gin.Context) bool {
	log := requestLog(c)
	form, err := parseCallbackForm(c)
	if err != nil {
		log.Warnw("alipay_callback_form_parse_failed", "error", err)
		return false
	}
	if !h.isAlipayCallbackForm(form) {
		log.Debugw("alipay_callback_not_matched")
		return false
	}
	log.Infow("alipay_callback_received",
		"client_ip", c.ClientIP(),
		"out_trade_no", strings.TrimSpace(getFirstValue(form, "out_trade_no")),
		"trade_no", strings.TrimSpace(getFirstValue(form, "trade_no")),
		"trade_status", strings.TrimSpace(getFirstValue(form, "trade_status")),
		"raw_form", callbackRawFormForLog(form),
	)

	if h.AlipayVerifier == nil {
		log.Warnw("alipay_callback_verifier_unavailable")
		c.String(200, constants.AlipayCallbackFail)
		return true
	}

	event, err := h.AlipayVerifier.VerifyNotification(c.Request.Context(), service.Notification{Form: form})
	if err != nil {
		log.Warnw("alipay_callback_verify_failed", "error", err)
		c.String(200, constants.AlipayCallbackFail)
		return true
	}

	result, err := h.RechargeService.ApplyEvent(event)
	if err != nil {
		// 应答失败让网关按退避策略重投
		log.Warnw("alipay_callback_apply_failed",
			"recharge_no", event.RechargeNo,
			"error", err,
		)
		c.String(200, constants.AlipayCallbackFail)
		return true
	}
	log.Infow("alipay_callback_processed",
		"recharge_no", event.RechargeNo,
		"outcome", result.Outcome,
	)
	c.String(200, constants.AlipayCallbackSuccess)
	return true
}

// isAlipayCallbackForm 识别支付宝通知表单。联调模式放宽到仅要求单号
func (h *Handler) isAlipayCallbackForm(form map[string][]string) bool {
	if strings.TrimSpace(getFirstValue(form, "out_trade_no")) == "" {
		return false
	}
	if h.mockNotifyEnabled() {
		return true
	}
	if strings.TrimSpace(getFirstValue(form, "sign")) == "" {
		return false
	}
	hasNotifyField := strings.TrimSpace(getFirstValue(form, "notify_id")) != "" ||
		strings.TrimSpace(getFirstValue(form, "notify_type")) != "" ||
		strings.TrimSpace(getFirstValue(form, "buyer_id")) != ""
	return hasNotifyField
}
