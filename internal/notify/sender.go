package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Sender delivers one job to the customer-facing channel.
type Sender interface {
	Send(ctx context.Context, job Job) error
}

// HTTPSender posts the confirmation payload to a mailer endpoint.
type HTTPSender struct {
	url    string
	client *http.Client
}

func NewHTTPSender(url string, timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSender{url: url, client: &http.Client{Timeout: timeout}}
}

func (s *HTTPSender) Send(ctx context.Context, job Job) error {
	body, err := json.Marshal(job.Payload)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("encode confirmation %s: %w", job.OrderID, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build mailer request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", job.ID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("mailer request for %s: %w", job.OrderID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return backoff.Permanent(fmt.Errorf("mailer rejected %s with %d", job.OrderID, resp.StatusCode))
	default:
		return fmt.Errorf("mailer returned %d for %s", resp.StatusCode, job.OrderID)
	}
}

// LogSender only logs. It stands in when no mailer is configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, job Job) error {
	s.logger.Info("order confirmation",
		zap.String("job_id", job.ID),
		zap.String("order_id", job.OrderID),
		zap.String("email", job.Payload.Email),
		zap.String("final_total", job.Payload.OrderDetails.FinalTotal.StringFixed(2)),
	)
	return nil
}
