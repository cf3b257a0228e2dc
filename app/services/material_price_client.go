package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kajiya-works/kajiya/pricing"
	"github.com/kajiya-works/kajiya/utils"
)

// Material price client error constants
var (
	ErrMaterialPriceUnavailable = errors.New("material price feed unavailable")
	ErrMaterialUnknown          = errors.New("material not tracked by price feed")
)

// MaterialPriceService resolves live per-kg material prices. The pricing
// engine falls back to the static catalog when the feed has no fresher
// answer, so callers treat errors as soft.
type MaterialPriceService interface {
	PricePerKg(ctx context.Context, materialKey string) (float64, error)
	Refresh(ctx context.Context) error
}

// MaterialPriceClient fetches material spot prices over HTTP and caches
// them in memory between refreshes.
type MaterialPriceClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	mu          sync.RWMutex
	prices      map[string]float64
	refreshedAt time.Time
}

// NewMaterialPriceClient creates a material price client. A base URL of
// "mock" short-circuits to catalog prices, which is what dev and test use.
func NewMaterialPriceClient(baseURL, apiKey string, timeout time.Duration) *MaterialPriceClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MaterialPriceClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
		prices:     make(map[string]float64),
	}
}

type materialPricesResp struct {
	Success bool               `json:"success"`
	Data    map[string]float64 `json:"data"` // e.g., {"aluminum-6061": 8.62, ...}
}

// PricePerKg returns the cached live price for a material, falling back to
// the static catalog rate when the feed has nothing for it
func (c *MaterialPriceClient) PricePerKg(ctx context.Context, materialKey string) (float64, error) {
	c.mu.RLock()
	price, ok := c.prices[materialKey]
	c.mu.RUnlock()
	if ok {
		return price, nil
	}

	if _, exists := pricing.Materials[materialKey]; !exists {
		return 0, ErrMaterialUnknown
	}
	return pricing.GetMaterial(materialKey).CostPerKg, nil
}

// Refresh pulls the latest price sheet from the feed
func (c *MaterialPriceClient) Refresh(ctx context.Context) error {
	if c.BaseURL == "" || c.BaseURL == "mock" {
		return nil
	}

	url := c.BaseURL + "/v1/materials/prices"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMaterialPriceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrMaterialPriceUnavailable, resp.StatusCode)
	}

	var out materialPricesResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	if !out.Success {
		return ErrMaterialPriceUnavailable
	}

	c.mu.Lock()
	for key, price := range out.Data {
		if price > 0 {
			c.prices[key] = price
		}
	}
	c.refreshedAt = utils.UTCNow()
	c.mu.Unlock()

	return nil
}

// RefreshedAt reports when the cache was last filled from the feed
func (c *MaterialPriceClient) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}
