package public

import (
	"net/http"
	"strings"

	"github.com/topup-next/internal/constants"

	"github.com/gin-gonic/gin"
)

const callbackLogValueLimit = 256

// PaymentCallback 支付回调统一入口。按请求特征依次匹配各渠道，
// 全部未命中时按失败应答。
func (h *Handler) PaymentCallback(c *gin.Context) {
	requestLog(c).Infow("payment_callback_received",
		"method", c.Request.Method,
		"client_ip", c.ClientIP(),
		"content_type", strings.TrimSpace(c.GetHeader("Content-Type")),
	)
	if handled := h.HandleWechatCallback(c); handled {
		return
	}
	if handled := h.HandleAlipayCallback(c); handled {
		return
	}
	requestLog(c).Warnw("payment_callback_unrecognized",
		"method", c.Request.Method,
		"client_ip", c.ClientIP(),
		"content_type", strings.TrimSpace(c.GetHeader("Content-Type")),
	)
	c.String(http.StatusBadRequest, constants.AlipayCallbackFail)
}

func parseCallbackForm(c *gin.Context) (map[string][]string, error) {
	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	if len(c.Request.PostForm) > 0 {
		return c.Request.PostForm, nil
	}
	return c.Request.Form, nil
}

func getFirstValue(form map[string][]string, key string) string {
	if values, ok := form[key]; ok && len(values) > 0 {
		return values[0]
	}
	return ""
}

func truncateCallbackLogValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if len(raw) <= callbackLogValueLimit {
		return raw
	}
	return raw[:callbackLogValueLimit] + "...(truncated)"
}

func callbackRawBodyForLog(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	return truncateCallbackLogValue(string(body))
}

func callbackRawFormForLog(form map[string][]string) map[string]interface{} {
	result := make(map[string]interface{}, len(form))
	for key, values := range form {
		if len(values) == 0 {
			result[key] = ""
			continue
		}
		if len(values) == 1 {
			result[key] = truncateCallbackLogValue(values[0])
			continue
		}
		copied := make([]string, 0, len(values))
		for _, value := range values {
			copied = append(copied, truncateCallbackLogValue(value))
		}
		result[key] = copied
	}
	return result
}

func (h *Handler) mockNotifyEnabled() bool {
	return h != nil && h.Container != nil && h.Config != nil && h.Config.Payment.MockNotify
}
