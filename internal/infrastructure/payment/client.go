package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"checkout-reconciler/internal/domain"
)

const (
	payPath    = "/checkout/v2/pay"
	statusPath = "/checkout/v2/order/%s/status"

	maxResponseBytes = 1 << 20
)

type ClientConfig struct {
	BaseURL       string
	ClientID      string
	ClientSecret  string
	WebhookSecret string
	Timeout       time.Duration
}

type httpGateway struct {
	cfg    ClientConfig
	base   *url.URL
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds the provider adapter. It fails with domain.ErrConfig when
// credentials are missing so that misconfiguration surfaces at startup.
func NewClient(cfg ClientConfig, logger *zap.Logger) (Gateway, error) {
	if cfg.BaseURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: gateway base url, client credentials and webhook secret are required", domain.ErrConfig)
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: gateway base url: %v", domain.ErrConfig, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &httpGateway{
		cfg:    cfg,
		base:   base,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

type payRequest struct {
	MerchantOrderID string      `json:"merchantOrderId"`
	Amount          int64       `json:"amount"`
	PaymentFlow     paymentFlow `json:"paymentFlow"`
	CallbackURL     string      `json:"callbackUrl"`
}

type paymentFlow struct {
	Type         string       `json:"type"`
	MerchantUrls merchantUrls `json:"merchantUrls"`
}

type merchantUrls struct {
	RedirectURL string `json:"redirectUrl"`
}

type payResponse struct {
	OrderID     string `json:"orderId"`
	State       string `json:"state"`
	RedirectURL string `json:"redirectUrl"`
}

type statusResponse struct {
	OrderID        string          `json:"orderId"`
	State          string          `json:"state"`
	PaymentDetails []paymentDetail `json:"paymentDetails"`
}

func (g *httpGateway) Initiate(ctx context.Context, req InitiateRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	body, err := json.Marshal(payRequest{
		MerchantOrderID: req.OrderID,
		Amount:          req.AmountMinor,
		PaymentFlow: paymentFlow{
			Type:         "PG_CHECKOUT",
			MerchantUrls: merchantUrls{RedirectURL: req.RedirectURL},
		},
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		return "", fmt.Errorf("encode pay request: %w", err)
	}

	var resp payResponse
	if err := g.do(ctx, http.MethodPost, payPath, body, &resp); err != nil {
		return "", err
	}
	if resp.RedirectURL == "" {
		return "", fmt.Errorf("%w: provider returned no redirect url for %s", domain.ErrGatewayUnavailable, req.OrderID)
	}

	g.logger.Info("payment session opened",
		zap.String("order_id", req.OrderID),
		zap.Int64("amount_minor", req.AmountMinor),
		zap.String("provider_order_id", resp.OrderID),
	)
	return resp.RedirectURL, nil
}

func (g *httpGateway) VerifyCallback(rawBody []byte, signatureHeader string) (*CallbackEvent, error) {
	if err := VerifySignature(g.cfg.WebhookSecret, rawBody, signatureHeader); err != nil {
		return nil, err
	}
	return decodeCallback(rawBody)
}

func (g *httpGateway) QueryStatus(ctx context.Context, orderID string) (*StatusResult, error) {
	var resp statusResponse
	if err := g.do(ctx, http.MethodGet, fmt.Sprintf(statusPath, url.PathEscape(orderID)), nil, &resp); err != nil {
		return nil, err
	}

	outcome, ok := ParseOutcome(resp.State)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognised state %q for %s", domain.ErrGatewayUnavailable, resp.State, orderID)
	}
	return &StatusResult{
		OrderID:          orderID,
		Outcome:          outcome,
		GatewayReference: reference(resp.PaymentDetails, resp.OrderID),
	}, nil
}

// do sends one signed request. Transport failures, non-2xx answers and
// undecodable bodies all surface as domain.ErrGatewayUnavailable.
func (g *httpGateway) do(ctx context.Context, method, path string, body []byte, out any) error {
	endpoint := g.base.String() + path

	var reader io.Reader
	signed := []byte(path)
	if body != nil {
		reader = bytes.NewReader(body)
		signed = body
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Client-Id", g.cfg.ClientID)
	req.Header.Set("X-Verify", Sign(g.cfg.ClientSecret, signed))

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrGatewayUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.logger.Warn("gateway returned error status",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: %s %s returned %d", domain.ErrGatewayUnavailable, method, path, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrGatewayUnavailable, err)
	}
	return nil
}
