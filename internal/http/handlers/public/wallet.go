package public

import (
	"errors"
	"strconv"
	"strings"

	"github.com/topup-next/internal/http/response"
	"github.com/topup-next/internal/models"
	"github.com/topup-next/internal/service"

	"github.com/gin-gonic/gin"
)

// WalletRechargeRequest 用户充值请求
type WalletRechargeRequest struct {
	AmountCents int64  `json:"amount_cents" binding:"required"`
	Channel     string `json:"channel" binding:"required"`
}

// GetMyWallet 获取当前用户余额
func (h *Handler) GetMyWallet(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	account, err := h.WalletService.GetBalance(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "wallet fetch failed", err)
		return
	}
	response.Success(c, account)
}

// GetMyWalletTransactions 获取当前用户余额流水
func (h *Handler) GetMyWalletTransactions(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	txnType := strings.TrimSpace(c.Query("type"))

	transactions, total, err := h.WalletService.ListTransactions(uid, txnType, page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "wallet fetch failed", err)
		return
	}
	response.SuccessWithPage(c, transactions, response.NewPagination(page, pageSize, total))
}

// CreateRecharge 创建充值单并发起网关下单
func (h *Handler) CreateRecharge(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req WalletRechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	order, err := h.RechargeService.CreateRecharge(c.Request.Context(), service.CreateRechargeInput{
		UserID:      uid,
		AmountCents: req.AmountCents,
		Channel:     strings.TrimSpace(req.Channel),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAmountInvalid):
			respondError(c, response.CodeBadRequest, "amount invalid", nil)
		case errors.Is(err, service.ErrChannelInvalid):
			respondError(c, response.CodeBadRequest, "channel invalid", nil)
		case errors.Is(err, service.ErrChannelDisabled):
			respondError(c, response.CodeBadRequest, "channel disabled", nil)
		case errors.Is(err, service.ErrGatewayUnavailable):
			respondError(c, response.CodeBadRequest, "gateway unavailable", err)
		default:
			respondError(c, response.CodeInternal, "recharge create failed", err)
		}
		return
	}
	response.Success(c, buildRechargePayload(order))
}

// GetMyRecharge 获取当前用户充值单详情
func (h *Handler) GetMyRecharge(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	rechargeNo := strings.TrimSpace(c.Param("recharge_no"))
	if rechargeNo == "" {
		respondError(c, response.CodeBadRequest, "bad request", nil)
		return
	}
	order, err := h.RechargeService.GetRechargeForUser(uid, rechargeNo)
	if err != nil {
		if errors.Is(err, service.ErrRechargeNotFound) {
			respondError(c, response.CodeNotFound, "recharge not found", nil)
			return
		}
		respondError(c, response.CodeInternal, "recharge fetch failed", err)
		return
	}
	response.Success(c, buildRechargePayload(order))
}

// ListMyRecharges 获取当前用户充值单列表
func (h *Handler) ListMyRecharges(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	status := strings.TrimSpace(c.Query("status"))

	orders, total, err := h.RechargeService.ListRechargesForUser(uid, status, page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "recharge fetch failed", err)
		return
	}
	response.SuccessWithPage(c, orders, response.NewPagination(page, pageSize, total))
}

// CaptureMyRecharge 主动检查充值支付状态。网关已支付时立即入账并
// 返回最新状态，查询失败不向前端报错。
func (h *Handler) CaptureMyRecharge(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	rechargeNo := strings.TrimSpace(c.Param("recharge_no"))
	if rechargeNo == "" {
		respondError(c, response.CodeBadRequest, "bad request", nil)
		return
	}
	order, err := h.RechargeService.CaptureRecharge(c.Request.Context(), uid, rechargeNo)
	if err != nil {
		if errors.Is(err, service.ErrRechargeNotFound) {
			respondError(c, response.CodeNotFound, "recharge not found", nil)
			return
		}
		respondError(c, response.CodeInternal, "recharge capture failed", err)
		return
	}

	payload := buildRechargePayload(order)
	if order.IsPaid() {
		account, err := h.WalletService.GetBalance(uid)
		if err == nil {
			payload["account"] = account
		}
	}
	response.Success(c, payload)
}

func buildRechargePayload(order *models.RechargeOrder) gin.H {
	if order == nil {
		return gin.H{}
	}
	return gin.H{
		"recharge_no":  order.RechargeNo,
		"status":       order.Status,
		"channel":      order.Channel,
		"amount_cents": order.AmountCents,
		"currency":     order.Currency,
		"pay_url":      order.PayURL,
		"qr_code":      order.QRCode,
		"paid_at":      order.PaidAt,
		"created_at":   order.CreatedAt,
	}
}
