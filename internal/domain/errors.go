package domain

import (
	"errors"
	"strings"
)

var (
	ErrDuplicateOrder     = errors.New("duplicate order")
	ErrNotFound           = errors.New("order not found")
	ErrUnknownOrder       = errors.New("unknown order")
	ErrNotGatewayOrder    = errors.New("order is not paid through the gateway")
	ErrSignatureInvalid   = errors.New("signature invalid")
	ErrMalformedPayload   = errors.New("malformed payload")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrConfig             = errors.New("configuration error")
	ErrPersistence        = errors.New("persistence error")
)

type FieldError struct {
	Field  string `json:"path"`
	Reason string `json:"info"`
}

// ValidationError reports malformed input at the boundary. Nothing is persisted
// when it is returned.
type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(field, reason string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, reason)
	return v
}

func (v *ValidationError) Add(field, reason string) {
	v.Fields = append(v.Fields, FieldError{Field: field, Reason: reason})
}

func (v *ValidationError) HasErrors() bool {
	return len(v.Fields) > 0
}

func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		parts = append(parts, f.Field+" "+f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
