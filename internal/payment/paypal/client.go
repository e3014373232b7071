package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"ms-payments/internal/config"
	"ms-payments/internal/logger"
	"ms-payments/internal/models"
)

// Client talks to the PayPal REST API. Only the two calls the workflow
// needs are implemented: fetching an order and capturing an authorization.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client
	logger       *logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(cfg config.PayPalConfig, log *logger.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		client:       &http.Client{Timeout: timeout},
		logger:       log,
	}
}

// SandboxLink returns the browser SDK script URL for the configured client id.
func (c *Client) SandboxLink() string {
	link := "https://www.paypal.com/sdk/js?client-id=%s&currency=EUR&debug=false&disable-card=amex&intent=authorize"
	return fmt.Sprintf(link, c.clientID)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("PAYPAL", fmt.Sprintf("Token request failed: %v", err))
		return "", fmt.Errorf("paypal token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error("PAYPAL", fmt.Sprintf("Token request returned status %d: %s", resp.StatusCode, string(body)))
		return "", fmt.Errorf("paypal token request returned status: %d", resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	c.accessToken = token.AccessToken
	// Refresh one minute early so in-flight calls never carry a stale token
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - time.Minute)

	c.logger.Debug("PAYPAL", "Obtained new access token")
	return c.accessToken, nil
}

// FetchOrder retrieves the processor's view of an order.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (models.OrderDetails, error) {
	c.logger.LogProcessor("FETCH_ORDER", fmt.Sprintf("Fetching order %s", orderID))

	var details models.OrderDetails
	endpoint := fmt.Sprintf("%s/v2/checkout/orders/%s", c.baseURL, orderID)

	if err := c.doJSON(ctx, "GET", endpoint, &details); err != nil {
		return models.OrderDetails{}, err
	}

	c.logger.LogProcessor("FETCH_ORDER", fmt.Sprintf("Order %s status: %s", details.OrderID, details.Status))
	return details, nil
}

// CaptureAuthorization finalizes a previously authorized hold into an actual
// fund transfer.
func (c *Client) CaptureAuthorization(ctx context.Context, authorizationID string) (models.CaptureResult, error) {
	c.logger.LogProcessor("CAPTURE", fmt.Sprintf("Capturing authorization %s", authorizationID))

	var result models.CaptureResult
	endpoint := fmt.Sprintf("%s/v2/payments/authorizations/%s/capture", c.baseURL, authorizationID)

	if err := c.doJSON(ctx, "POST", endpoint, &result); err != nil {
		return models.CaptureResult{}, err
	}

	c.logger.LogProcessor("CAPTURE", fmt.Sprintf("Capture %s status: %s", result.CaptureID, result.Status))
	return result, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, out interface{}) error {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("PAYPAL", fmt.Sprintf("Request to %s failed: %v", endpoint, err))
		return fmt.Errorf("paypal request failed: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.logger.Error("PAYPAL", fmt.Sprintf("Failed to close response body: %v", err))
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error("PAYPAL", fmt.Sprintf("%s %s returned status %d: %s", method, endpoint, resp.StatusCode, string(body)))
		return fmt.Errorf("paypal returned status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Error("PAYPAL", fmt.Sprintf("Failed to decode response: %v", err))
		return fmt.Errorf("failed to decode paypal response: %w", err)
	}

	return nil
}
