package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"checkout-reconciler/internal/domain"
	"checkout-reconciler/internal/infrastructure/payment"
	"checkout-reconciler/internal/service"
)

// SandboxHandler plays the customer on the simulated checkout page. The
// resulting webhook goes through the same verification path as a real one.
type SandboxHandler struct {
	gateway        *payment.MockGateway
	paymentService service.PaymentService
	logger         *zap.Logger
}

func NewSandboxHandler(gateway *payment.MockGateway, paymentService service.PaymentService, logger *zap.Logger) *SandboxHandler {
	return &SandboxHandler{gateway: gateway, paymentService: paymentService, logger: logger}
}

func (h *SandboxHandler) Pay(c *gin.Context) {
	orderID := c.Param("orderId")
	fate, body, header, err := h.gateway.Pay(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	if fate == payment.FatePhantom {
		h.logger.Warn("sandbox charge went phantom, no webhook sent", zap.String("order_id", orderID))
		c.JSON(http.StatusGatewayTimeout, gin.H{"orderId": orderID, "fate": fate.String()})
		return
	}

	res, err := h.paymentService.HandleCallback(c.Request.Context(), body, header)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orderId": orderID, "fate": fate.String(), "status": res.Status})
}

func (h *SandboxHandler) Cancel(c *gin.Context) {
	orderID := c.Param("orderId")
	if err := h.gateway.Cancel(orderID); err != nil {
		writeError(c, err)
		return
	}

	body, header, err := h.gateway.SignedWebhook(orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := h.paymentService.HandleCallback(c.Request.Context(), body, header)
	if err != nil {
		writeError(c, err)
		return
	}
	status := domain.OrderCancelled
	if res.Status != "" {
		status = res.Status
	}
	c.JSON(http.StatusOK, gin.H{"orderId": orderID, "status": status})
}
