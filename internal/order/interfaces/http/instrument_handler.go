package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/response"

	"github.com/wyfcoding/exchange/internal/order/application"
)

// InstrumentHandler 负责处理品种管理 HTTP 请求
type InstrumentHandler struct {
	svc *application.InstrumentService
}

func NewInstrumentHandler(svc *application.InstrumentService) *InstrumentHandler {
	return &InstrumentHandler{svc: svc}
}

func (h *InstrumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/instruments")
	{
		api.GET("", h.ListInstruments)
	}

	admin := router.Group("/api/v1/admin/instruments")
	{
		admin.POST("", h.CreateInstrument)
		admin.PUT("/:symbol/status", h.SetStatus)
	}
}

// ListInstruments 全部品种。
func (h *InstrumentHandler) ListInstruments(c *gin.Context) {
	instruments, err := h.svc.ListInstruments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, instruments)
}

// CreateInstrument 上架新品种。
func (h *InstrumentHandler) CreateInstrument(c *gin.Context) {
	var req application.CreateInstrumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request data", err.Error())
		return
	}

	instrument, err := h.svc.CreateInstrument(c.Request.Context(), &req)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to create instrument",
			"symbol", req.Symbol, "error", err)
		response.Error(c, err)
		return
	}

	response.Success(c, instrument)
}

// SetStatusRequest 品种状态切换请求
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetStatus 停牌/复牌。
func (h *InstrumentHandler) SetStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request data", err.Error())
		return
	}

	instrument, err := h.svc.SetStatus(c.Request.Context(), c.Param("symbol"), req.Status)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to set instrument status",
			"symbol", c.Param("symbol"), "error", err)
		response.Error(c, err)
		return
	}

	response.Success(c, instrument)
}
