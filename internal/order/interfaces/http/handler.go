// Package http 订单服务的 HTTP 接口。
package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/response"

	"github.com/wyfcoding/exchange/internal/order/application"
)

// OrderHandler 负责处理订单相关 HTTP 请求
type OrderHandler struct {
	svc *application.OrderService
}

func NewOrderHandler(svc *application.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/orders")
	{
		api.POST("", h.PlaceOrder)
		api.GET("", h.ListOrders)
		api.GET("/:id", h.GetOrder)
		api.PUT("/:id", h.ModifyOrder)
		api.DELETE("/:id", h.CancelOrder)
		api.GET("/:id/trades", h.ListOrderTrades)
	}
}

// PlaceOrder 下单：资金预占 + 撮合 + 结算在一次调用内完成。
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req application.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request data", err.Error())
		return
	}

	result, err := h.svc.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to place order",
			"account_id", req.AccountID, "symbol", req.Symbol, "error", err)
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetOrder 查询单笔订单。
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.svc.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, order)
}

// ListOrders 查询账户订单列表。
func (h *OrderHandler) ListOrders(c *gin.Context) {
	accountID := c.Query("account_id")
	if accountID == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "account_id parameter is required", "")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	orders, err := h.svc.ListOrders(c.Request.Context(), accountID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, orders)
}

// ModifyOrder 改单：改价或改量，丧失时间优先级并可能立即成交。
func (h *OrderHandler) ModifyOrder(c *gin.Context) {
	var req application.ModifyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request data", err.Error())
		return
	}

	result, err := h.svc.ModifyOrder(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to modify order",
			"order_id", c.Param("id"), "error", err)
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CancelOrder 撤单。幂等：重复撤单与撤已终态订单同样返回成功。
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	order, err := h.svc.CancelOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		logging.Error(c.Request.Context(), "failed to cancel order",
			"order_id", c.Param("id"), "error", err)
		response.Error(c, err)
		return
	}

	response.Success(c, order)
}

// ListOrderTrades 查询某笔订单的全部成交。
func (h *OrderHandler) ListOrderTrades(c *gin.Context) {
	trades, err := h.svc.ListOrderTrades(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, trades)
}
