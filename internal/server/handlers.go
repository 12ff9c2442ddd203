package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"checkout-reconciler/internal/domain"
	"checkout-reconciler/internal/service"
)

// HealthChecker reports store health, see database.Service.
type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orderService: orderService, logger: logger}
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), req.toInput(c.GetHeader(couponHeader)))
	if err != nil {
		if !isClientError(err) {
			h.logger.Error("failed to place order", zap.String("order_id", req.OrderID), zap.Error(err))
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, createOrderResponse{
		Message: "Order placed successfully",
		OrderID: order.OrderID,
		StoreID: order.InternalID.String(),
	})
}

func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(order))
}

type PaymentHandler struct {
	paymentService service.PaymentService
	logger         *zap.Logger
}

func NewPaymentHandler(paymentService service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, logger: logger}
}

func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.paymentService.Initiate(c.Request.Context(), service.InitiateInput{
		OrderID:  req.OrderID,
		Amount:   req.Amount,
		Customer: req.Customer,
	})
	if err != nil {
		// A provider failure while opening checkout is a server error here;
		// 503 is reserved for status checks the client can retry.
		if errors.Is(err, domain.ErrGatewayUnavailable) {
			errorJSON(c, http.StatusInternalServerError, "Payment initiation failed")
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, initiatePaymentResponse{PaymentURL: res.PaymentURL, OrderID: res.OrderID})
}

// Callback reads the body raw; the signature covers these exact bytes.
func (h *PaymentHandler) Callback(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "Unreadable body")
		return
	}

	res, err := h.paymentService.HandleCallback(c.Request.Context(), raw, c.GetHeader("Authorization"))
	if err != nil {
		if !isClientError(err) {
			h.logger.Error("webhook processing failed", zap.Error(err))
		}
		writeError(c, err)
		return
	}

	body := gin.H{"message": "Webhook processed", "orderId": res.OrderID}
	if res.Ignored != "" {
		body["ignored"] = res.Ignored
	} else {
		body["status"] = res.Status
		body["transitioned"] = res.Transitioned
	}
	c.JSON(http.StatusOK, body)
}

func (h *PaymentHandler) Status(c *gin.Context) {
	orderID := c.Param("orderId")
	status, err := h.paymentService.CheckStatus(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, statusResponse{OrderID: orderID, Status: string(status)})
}

func healthHandler(checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := map[string]string{"status": "up", "store": "memory"}
		if checker != nil {
			stats = checker.Health(c.Request.Context())
		}
		code := http.StatusOK
		if stats["status"] != "up" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, stats)
	}
}

func isClientError(err error) bool {
	var verr *domain.ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, domain.ErrDuplicateOrder) ||
		errors.Is(err, domain.ErrSignatureInvalid) ||
		errors.Is(err, domain.ErrMalformedPayload)
}
