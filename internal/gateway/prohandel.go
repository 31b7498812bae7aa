package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mercurios-retail/syncbridge/internal/config"
)

var ErrProHandelNotConfigured = errors.New("prohandel api credentials not configured")

// ProHandelClient talks to the ProHandel POS API. The bearer token is
// short-lived and fetched lazily on first use; one client is shared between
// the poll scheduler and the manual sync trigger, so the cached token is
// guarded by mu.
type ProHandelClient struct {
	authURL   string
	apiURL    string
	apiKey    string
	apiSecret string
	client    *http.Client

	mu    sync.Mutex
	token string
}

func NewProHandelClient(cfg *config.Config) *ProHandelClient {
	return &ProHandelClient{
		authURL:   cfg.ProHandelAuthURL,
		apiURL:    cfg.ProHandelAPIURL,
		apiKey:    cfg.ProHandelAPIKey,
		apiSecret: cfg.ProHandelAPISecret,
		client:    &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

type proHandelAuthRequest struct {
	APIKey string `json:"apiKey"`
	Secret string `json:"secret"`
}

type proHandelAuthResponse struct {
	Token struct {
		Token struct {
			Value string `json:"value"`
		} `json:"token"`
	} `json:"token"`
}

// bearerToken returns the cached token, exchanging the key/secret for a new
// one when none is held. The lock is held across the exchange so concurrent
// runs share one auth round-trip instead of racing.
func (c *ProHandelClient) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" {
		return c.token, nil
	}
	token, err := c.authenticate(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	return token, nil
}

// invalidateToken drops the cached token if it is still the one that got
// rejected; a token refreshed by a concurrent run is left in place.
func (c *ProHandelClient) invalidateToken(rejected string) {
	c.mu.Lock()
	if c.token == rejected {
		c.token = ""
	}
	c.mu.Unlock()
}

func (c *ProHandelClient) authenticate(ctx context.Context) (string, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return "", ErrProHandelNotConfigured
	}

	reqBody, err := json.Marshal(proHandelAuthRequest{APIKey: c.apiKey, Secret: c.apiSecret})
	if err != nil {
		return "", fmt.Errorf("failed to marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+"/token", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("prohandel auth failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("prohandel auth error (status %d): %s", resp.StatusCode, string(body))
	}

	var authResp proHandelAuthResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		return "", fmt.Errorf("failed to decode auth response: %w", err)
	}
	if authResp.Token.Token.Value == "" {
		return "", errors.New("prohandel auth response carried no token")
	}
	return authResp.Token.Token.Value, nil
}

func (c *ProHandelClient) ListVouchersChangedSince(ctx context.Context, since time.Time) ([]POSVoucher, error) {
	var vouchers []POSVoucher
	if err := c.get(ctx, "/voucher/changed/"+since.UTC().Format(time.RFC3339), &vouchers); err != nil {
		return nil, err
	}
	return vouchers, nil
}

func (c *ProHandelClient) ListRedemptionsChangedSince(ctx context.Context, since time.Time) ([]POSRedemption, error) {
	var redemptions []POSRedemption
	if err := c.get(ctx, "/voucher/redemption/changed/"+since.UTC().Format(time.RFC3339), &redemptions); err != nil {
		return nil, err
	}
	return redemptions, nil
}

type posCustomerResponse struct {
	ID     string `json:"id"`
	Number int64  `json:"number"`
}

func (c *ProHandelClient) CreateCustomer(ctx context.Context, cust POSCustomer) (string, error) {
	reqBody, err := json.Marshal(cust)
	if err != nil {
		return "", fmt.Errorf("failed to marshal customer request: %w", err)
	}

	var resp posCustomerResponse
	if err := c.do(ctx, http.MethodPost, "/customer", reqBody, &resp); err != nil {
		return "", err
	}
	if resp.ID != "" {
		return resp.ID, nil
	}
	if resp.Number != 0 {
		return strconv.FormatInt(resp.Number, 10), nil
	}
	return "", errors.New("prohandel customer response carried no id")
}

func (c *ProHandelClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *ProHandelClient) do(ctx context.Context, method, path string, reqBody []byte, out any) error {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return err
	}

	var bodyReader io.Reader
	if reqBody != nil {
		bodyReader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("prohandel request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read prohandel response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// Token expired mid-run; the next call re-authenticates.
		c.invalidateToken(token)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("prohandel API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode prohandel response: %w", err)
	}
	return nil
}
