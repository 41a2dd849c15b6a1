// Package http 账户服务的 HTTP 接口。
package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/response"

	"github.com/wyfcoding/exchange/internal/account/application"
	mdapp "github.com/wyfcoding/exchange/internal/marketdata/application"
)

// AccountHandler 负责处理账户相关 HTTP 请求
type AccountHandler struct {
	svc    *application.Service
	market *mdapp.Service
}

func NewAccountHandler(svc *application.Service, market *mdapp.Service) *AccountHandler {
	return &AccountHandler{svc: svc, market: market}
}

func (h *AccountHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/accounts")
	{
		api.POST("", h.CreateAccount)
		api.GET("/:id", h.GetAccount)
		api.POST("/:id/deposit", h.Deposit)
		api.POST("/:id/withdraw", h.Withdraw)
		api.GET("/:id/positions", h.GetPositions)
		api.GET("/:id/transactions", h.ListTransactions)
	}
}

// CreateAccountRequest 开户请求
type CreateAccountRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Currency string `json:"currency" binding:"required"`
}

// AmountRequest 充值/提现请求
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// CreateAccount 开户。
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request data", err.Error())
		return
	}

	account, err := h.svc.CreateAccount(c.Request.Context(), req.UserID, req.Currency)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to create account",
			"user_id", req.UserID, "error", err)
		response.Error(c, err)
		return
	}

	response.Success(c, account)
}

// GetAccount 查询账户余额。
func (h *AccountHandler) GetAccount(c *gin.Context) {
	account, err := h.svc.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, account)
}

// Deposit 充值。
func (h *AccountHandler) Deposit(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request data", err.Error())
		return
	}

	accountID := c.Param("id")
	if err := h.svc.Deposit(c.Request.Context(), accountID, req.Amount); err != nil {
		logging.Error(c.Request.Context(), "failed to deposit",
			"account_id", accountID, "error", err)
		response.Error(c, err)
		return
	}

	account, err := h.svc.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, account)
}

// Withdraw 提现，只允许动用可用余额。
func (h *AccountHandler) Withdraw(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request data", err.Error())
		return
	}

	accountID := c.Param("id")
	if err := h.svc.Withdraw(c.Request.Context(), accountID, req.Amount); err != nil {
		logging.Error(c.Request.Context(), "failed to withdraw",
			"account_id", accountID, "error", err)
		response.Error(c, err)
		return
	}

	account, err := h.svc.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, account)
}

// GetPositions 查询账户持仓，未实现盈亏按各交易对最新成交价估值。
func (h *AccountHandler) GetPositions(c *gin.Context) {
	marks := h.market.MarkPrices(c.Request.Context())
	positions, err := h.svc.GetPositions(c.Request.Context(), c.Param("id"), marks)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, positions)
}

// ListTransactions 查询账户资金流水。
func (h *AccountHandler) ListTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	transactions, err := h.svc.ListTransactions(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, transactions)
}
