// Package http 行情服务的 HTTP 接口。
package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/response"

	"github.com/wyfcoding/exchange/internal/marketdata/application"
)

// MarketDataHandler 负责处理行情查询 HTTP 请求
type MarketDataHandler struct {
	svc *application.Service
}

func NewMarketDataHandler(svc *application.Service) *MarketDataHandler {
	return &MarketDataHandler{svc: svc}
}

func (h *MarketDataHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/market")
	{
		api.GET("/symbols", h.ListSymbols)
		api.GET("/ticker", h.GetTicker)
		api.GET("/orderbook", h.GetOrderBook)
		api.GET("/trades", h.GetTrades)
	}

	admin := router.Group("/api/v1/admin/market")
	{
		admin.POST("/reset-daily-stats", h.ResetDailyStats)
	}
}

// ListSymbols 返回已有订单簿的交易对。
func (h *MarketDataHandler) ListSymbols(c *gin.Context) {
	response.Success(c, h.svc.ListSymbols(c.Request.Context()))
}

// GetTicker 获取交易对行情快照。
func (h *MarketDataHandler) GetTicker(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "symbol parameter is required", "")
		return
	}

	ticker, err := h.svc.GetTicker(c.Request.Context(), symbol)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, ticker)
}

// GetOrderBook 获取订单簿深度快照。
func (h *MarketDataHandler) GetOrderBook(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "symbol parameter is required", "")
		return
	}

	depth, err := strconv.Atoi(c.DefaultQuery("depth", "20"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid depth parameter", "")
		return
	}

	snapshot, err := h.svc.GetOrderBook(c.Request.Context(), symbol, depth)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, snapshot)
}

// GetTrades 获取交易对最近成交历史。
func (h *MarketDataHandler) GetTrades(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "symbol parameter is required", "")
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid limit parameter", "")
		return
	}

	trades, err := h.svc.GetRecentTrades(c.Request.Context(), symbol, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, trades)
}

// ResetDailyStats 运维端点：交易日切换时重置全部交易对的当日统计。
func (h *MarketDataHandler) ResetDailyStats(c *gin.Context) {
	count := h.svc.ResetDailyStats(c.Request.Context())
	logging.Info(c.Request.Context(), "daily stats reset", "symbols", count)
	response.Success(c, gin.H{"symbols_reset": count})
}
