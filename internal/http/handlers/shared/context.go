package shared

import (
	"github.com/topup-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetContextUint 从上下文读取鉴权中间件写入的 uint 值，缺失或类型不符时直接应答错误。
func GetContextUint(c *gin.Context, key string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v >= 0 {
			return uint(v), true
		}
	case float64:
		if v >= 0 {
			return uint(v), true
		}
	}
	RespondError(c, response.CodeInternal, key+" invalid", nil)
	return 0, false
}
