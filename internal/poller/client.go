package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"checkout-reconciler/internal/domain"
)

// StatusClient fetches order status from GET {base}/payments/status/{orderId}.
type StatusClient struct {
	baseURL string
	http    *http.Client
}

func NewStatusClient(baseURL string, timeout time.Duration) *StatusClient {
	return &StatusClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type statusBody struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

func (c *StatusClient) FetchStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/status/"+url.PathEscape(orderID), nil)
	if err != nil {
		return "", fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownOrder, orderID)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: status endpoint returned %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var body statusBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode status: %v", domain.ErrGatewayUnavailable, err)
	}
	status := domain.OrderStatus(body.Status)
	if !status.Valid() {
		return "", fmt.Errorf("%w: unexpected status %q", domain.ErrGatewayUnavailable, body.Status)
	}
	return status, nil
}
