package public

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/topup-next/internal/constants"
	"github.com/topup-next/internal/service"

	"github.com/gin-gonic/gin"
)

// HandleWechatCallback 处理微信支付回调。返回 true 表示请求已被本
// 渠道消化并完成应答。
func (h *Handler) HandleWechatCallback(c *gin.Context) bool {
	log := requestLog(c)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warnw("wechat_callback_body_read_failed", "error", err)
		return false
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if !h.isWechatCallbackRequest(c, body) {
		log.Debugw("wechat_callback_not_matched")
		return false
	}

	log.Infow("wechat_callback_received",
		"client_ip", c.ClientIP(),
		"body_size", len(body),
		"wechatpay_signature", truncateCallbackLogValue(strings.TrimSpace(c.GetHeader("Wechatpay-Signature"))),
		"wechatpay_timestamp", strings.TrimSpace(c.GetHeader("Wechatpay-Timestamp")),
		"wechatpay_nonce", truncateCallbackLogValue(strings.TrimSpace(c.GetHeader("Wechatpay-Nonce"))),
		"wechatpay_serial", strings.TrimSpace(c.GetHeader("Wechatpay-Serial")),
		"raw_body", callbackRawBodyForLog(body),
	)

	if h.WechatVerifier == nil {
		log.Warnw("wechat_callback_verifier_unavailable")
		respondWechatCallback(c, false)
		return true
	}

	headers := make(map[string]string)
	for key, values := range c.Request.Header {
		if len(values) == 0 {
			continue
		}
		headers[key] = values[0]
	}

	event, err := h.WechatVerifier.VerifyNotification(c.Request.Context(), service.Notification{
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		log.Warnw("wechat_callback_verify_failed", "error", err)
		respondWechatCallback(c, false)
		return true
	}

	result, err := h.RechargeService.ApplyEvent(event)
	if err != nil {
		// 应答失败让网关按退避策略重投
		log.Warnw("wechat_callback_apply_failed",
			"recharge_no", event.RechargeNo,
			"error", err,
		)
		respondWechatCallback(c, false)
		return true
	}
	log.Infow("wechat_callback_processed",
		"recharge_no", event.RechargeNo,
		"outcome", result.Outcome,
	)
	respondWechatCallback(c, true)
	return true
}

// isWechatCallbackRequest 识别微信支付回调请求。联调模式接受带
// out_trade_no 的明文 JSON
func (h *Handler) isWechatCallbackRequest(c *gin.Context, body []byte) bool {
	if h.mockNotifyEnabled() {
		var plain struct {
			OutTradeNo string `json:"out_trade_no"`
		}
		if err := json.Unmarshal(body, &plain); err == nil && strings.TrimSpace(plain.OutTradeNo) != "" {
			return true
		}
	}
	if strings.TrimSpace(c.GetHeader("Wechatpay-Signature")) == "" {
		return false
	}
	if strings.TrimSpace(c.GetHeader("Wechatpay-Timestamp")) == "" {
		return false
	}
	if strings.TrimSpace(c.GetHeader("Wechatpay-Nonce")) == "" {
		return false
	}
	if strings.TrimSpace(c.GetHeader("Wechatpay-Serial")) == "" {
		return false
	}

	payload := map[string]interface{}{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	resourceRaw, ok := payload["resource"]
	if !ok {
		return false
	}
	_, ok = resourceRaw.(map[string]interface{})
	return ok
}

func respondWechatCallback(c *gin.Context, success bool) {
	if success {
		c.JSON(http.StatusOK, gin.H{
			"code":    constants.WechatCallbackCodeSuccess,
			"message": "成功",
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    constants.WechatCallbackCodeFail,
		"message": "失败",
	})
}
