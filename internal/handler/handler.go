package handler

import (
	"errors"
	"strconv"

	"eggbot/internal/config"
	"eggbot/internal/infrastructure/logger"
	"eggbot/internal/service"
	"eggbot/internal/telegram"
	"eggbot/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	cfg        *config.Config
	game       *service.GameService
	ledger     *service.LedgerService
	settlement *service.SettlementService
	bot        *telegram.Bot
}

// NewHandler 创建处理器实例
func NewHandler(cfg *config.Config, game *service.GameService, ledger *service.LedgerService, settlement *service.SettlementService, invoices *service.InvoiceService) *Handler {
	return &Handler{
		cfg:        cfg,
		game:       game,
		ledger:     ledger,
		settlement: settlement,
		bot:        telegram.NewBot(game, settlement, invoices, cfg),
	}
}

// ============================================================
// 游戏指令
// ============================================================

// GameCommand 执行一条游戏指令
// POST /api/v1/game/command
func (h *Handler) GameCommand(c *gin.Context) {
	var cmd service.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if cmd.RequestID == "" {
		cmd.RequestID = c.GetString(requestIDKey)
	}

	res, err := h.game.Handle(c.Request.Context(), &cmd)
	if err != nil {
		logger.Error("游戏指令失败", zap.Int64("user_id", cmd.UserID), zap.String("intent", string(cmd.Intent)), zap.Error(err))
		response.Fail(c, string(res.ErrorKind), "系统繁忙，请稍后重试", res)
		return
	}
	if !res.Success {
		response.Fail(c, string(res.ErrorKind), string(res.ErrorKind), res)
		return
	}
	response.Success(c, res)
}

// ============================================================
// 账户
// ============================================================

// GetBalance 查询开蛋额度
// GET /api/v1/account/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	account, err := h.ledger.GetAccount(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			response.BusinessError(c, response.CodeAccountNotFound, "账户不存在")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"user_id":           account.UserID,
		"display_name":      account.DisplayName,
		"free_credits":      account.FreeCredits,
		"purchased_credits": account.PurchasedCredits,
		"available_credits": h.ledger.AvailableCredits(account),
	})
}

// ============================================================
// 支付
// ============================================================

// ConfirmPayment 支付成功通知
// POST /api/v1/payment/confirm
func (h *Handler) ConfirmPayment(c *gin.Context) {
	var req service.PaymentConfirmation
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if req.CreditUnitPrice == 0 {
		req.CreditUnitPrice = h.cfg.Business.CreditUnitPrice
	}

	res, err := h.settlement.Settle(c.Request.Context(), &req)
	if err != nil {
		kind := service.KindOf(err)
		if kind.Transient() {
			logger.Error("支付入账失败", zap.String("charge_id", req.ChargeID), zap.Error(err))
		}
		response.Fail(c, string(kind), err.Error(), res)
		return
	}
	response.Success(c, res)
}

// ListPayments 支付记录
// GET /api/v1/payment/list?user_id=xxx&page=1&page_size=10
func (h *Handler) ListPayments(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	payments, total, err := h.settlement.ListPayments(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      payments,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// Telegram
// ============================================================

// TelegramWebhook 处理 Telegram 推送的 Update
// POST /webhooks/telegram
//
// 基础设施失败返回 500，Telegram 会重新投递；入账是幂等的，重复投递不会重复加额度
func (h *Handler) TelegramWebhook(c *gin.Context) {
	var upd telegram.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	reply, err := h.bot.HandleUpdate(c.Request.Context(), &upd)
	if err != nil {
		logger.Error("处理 Telegram 更新失败", zap.Int64("update_id", upd.UpdateID), zap.Error(err))
		c.String(500, "Internal Server Error")
		return
	}
	if reply == nil {
		c.String(200, "OK")
		return
	}
	c.JSON(200, reply)
}
