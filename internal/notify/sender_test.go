package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPSender(t *testing.T) {
	var got map[string]any
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, time.Second)
	job := NewConfirmationJob(testOrder("ORD-1"))

	require.NoError(t, s.Send(context.Background(), job))
	assert.Equal(t, "Asha Rao", got["fullName"], "customer fields sit at the top level")
	assert.Equal(t, "ORD-1", got["orderId"])
	details, ok := got["orderDetails"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "979", details["finalTotal"])

	status = http.StatusServiceUnavailable
	err := s.Send(context.Background(), job)
	require.Error(t, err)
	var perm *backoff.PermanentError
	assert.False(t, errors.As(err, &perm))

	status = http.StatusBadRequest
	err = s.Send(context.Background(), job)
	require.Error(t, err)
	assert.True(t, errors.As(err, &perm), "4xx is not retried")
}

func TestLogSender(t *testing.T) {
	require.NoError(t, NewLogSender(zap.NewNop()).Send(context.Background(), NewConfirmationJob(testOrder("ORD-1"))))
}
