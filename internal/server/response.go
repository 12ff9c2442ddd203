package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"checkout-reconciler/internal/domain"
)

type ErrorBody struct {
	Message string              `json:"message"`
	Details []domain.FieldError `json:"details,omitempty"`
}

func errorJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{Message: message})
}

// bindError reports a request that failed binding, with one detail per
// failed field when the validator produced them.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]domain.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, domain.FieldError{Field: fieldPath(fe), Reason: validationMessage(fe)})
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorBody{Message: "Validation failed", Details: details})
		return
	}
	errorJSON(c, http.StatusBadRequest, "Invalid request body")
}

// fieldPath drops the top-level request struct from the namespace, so
// createOrderRequest.customerInfo.email becomes customerInfo.email.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	for i := 0; i < len(ns); i++ {
		if ns[i] == '.' {
			return ns[i+1:]
		}
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "is invalid"
	}
}

// writeError maps service errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorBody{Message: "Validation failed", Details: verr.Fields})
	case errors.Is(err, domain.ErrInvalidAmount):
		errorJSON(c, http.StatusBadRequest, "Invalid or missing amount")
	case errors.Is(err, domain.ErrMalformedPayload):
		errorJSON(c, http.StatusBadRequest, "Invalid callback")
	case errors.Is(err, domain.ErrSignatureInvalid):
		errorJSON(c, http.StatusUnauthorized, "Invalid signature")
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownOrder):
		errorJSON(c, http.StatusNotFound, "Order not found")
	case errors.Is(err, domain.ErrDuplicateOrder):
		errorJSON(c, http.StatusConflict, "Order already exists")
	case errors.Is(err, domain.ErrNotGatewayOrder):
		errorJSON(c, http.StatusConflict, "Order is not paid through the gateway")
	case errors.Is(err, domain.ErrGatewayUnavailable):
		errorJSON(c, http.StatusServiceUnavailable, "Payment verification unavailable")
	case errors.Is(err, domain.ErrConfig):
		errorJSON(c, http.StatusInternalServerError, "Payment gateway is not configured")
	default:
		errorJSON(c, http.StatusInternalServerError, "Internal server error")
	}
}
