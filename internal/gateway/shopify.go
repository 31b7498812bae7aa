package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mercurios-retail/syncbridge/internal/config"
)

var ErrShopifyNotConfigured = errors.New("shopify access token not configured")

// ShopifyClient talks to the Shopify Admin REST API for one shop.
type ShopifyClient struct {
	baseURL     string
	accessToken string
	pageSize    int
	client      *http.Client
}

func NewShopifyClient(cfg *config.Config) *ShopifyClient {
	return &ShopifyClient{
		baseURL:     "https://" + cfg.ShopDomain + "/admin/api/" + cfg.ShopifyAPIVersion,
		accessToken: cfg.ShopifyAccessToken,
		pageSize:    cfg.CustomerPageSize,
		client:      &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

type shopifyCustomersResponse struct {
	Customers []ShopifyCustomer `json:"customers"`
}

func (c *ShopifyClient) ListCustomers(ctx context.Context, pageToken string) ([]ShopifyCustomer, string, error) {
	query := url.Values{"limit": {strconv.Itoa(c.pageSize)}}
	if pageToken != "" {
		query.Set("page_info", pageToken)
	}

	body, header, err := c.do(ctx, http.MethodGet, "/customers.json?"+query.Encode(), nil)
	if err != nil {
		return nil, "", err
	}

	var resp shopifyCustomersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", fmt.Errorf("failed to decode customers response: %w", err)
	}

	return resp.Customers, nextPageToken(header.Get("Link")), nil
}

type shopifyGiftCardRequest struct {
	GiftCard shopifyGiftCardPayload `json:"gift_card"`
}

type shopifyGiftCardPayload struct {
	Code         string  `json:"code,omitempty"`
	InitialValue float64 `json:"initial_value,omitempty"`
	Note         string  `json:"note,omitempty"`
}

type shopifyGiftCardResponse struct {
	GiftCard struct {
		ID int64 `json:"id"`
	} `json:"gift_card"`
}

func (c *ShopifyClient) CreateGiftCard(ctx context.Context, code string, value float64, note string) (string, error) {
	reqBody, err := json.Marshal(shopifyGiftCardRequest{
		GiftCard: shopifyGiftCardPayload{Code: code, InitialValue: value, Note: note},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal gift card request: %w", err)
	}

	body, _, err := c.do(ctx, http.MethodPost, "/gift_cards.json", reqBody)
	if err != nil {
		return "", err
	}

	var resp shopifyGiftCardResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode gift card response: %w", err)
	}
	if resp.GiftCard.ID == 0 {
		return "", errors.New("gift card response carried no id")
	}
	return strconv.FormatInt(resp.GiftCard.ID, 10), nil
}

func (c *ShopifyClient) DisableGiftCard(ctx context.Context, id string) error {
	_, _, err := c.do(ctx, http.MethodPost, "/gift_cards/"+id+"/disable.json", []byte(`{}`))
	return err
}

func (c *ShopifyClient) do(ctx context.Context, method, path string, reqBody []byte) ([]byte, http.Header, error) {
	if c.accessToken == "" {
		return nil, nil, ErrShopifyNotConfigured
	}

	var bodyReader io.Reader
	if reqBody != nil {
		bodyReader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("shopify request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read shopify response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("shopify API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, resp.Header, nil
}

// nextPageToken extracts the page_info cursor for rel="next" from a Shopify
// Link header. Empty when there is no further page.
func nextPageToken(link string) string {
	for _, part := range strings.Split(link, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start < 0 || end <= start {
			continue
		}
		u, err := url.Parse(part[start+1 : end])
		if err != nil {
			continue
		}
		return u.Query().Get("page_info")
	}
	return ""
}
