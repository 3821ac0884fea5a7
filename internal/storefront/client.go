// Package storefront applies prices on the seller's storefront.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"dynamic-pricing-service/internal/service"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const defaultTimeout = 10 * time.Second

// ErrPriceRejected means the storefront refused the mutation; repeating it will not help.
var ErrPriceRejected = errors.New("storefront rejected price update")

// APIError is a non-2xx answer from the storefront API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storefront returned %d: %s", e.StatusCode, e.Body)
}

// Unwrap lets errors.Is(err, ErrPriceRejected) match client errors.
func (e *APIError) Unwrap() error {
	if e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests {
		return ErrPriceRejected
	}
	return nil
}

// ClientOptions tunes a Client.
type ClientOptions struct {
	APIVersion string
	RateLimit  float64 // requests per second across all stores
	Burst      int
	Timeout    time.Duration
}

// Client updates variant prices through the storefront admin REST API.
type Client struct {
	httpClient *http.Client
	apiVersion string
	limiter    *rate.Limiter
}

// NewClient creates a Client.
func NewClient(opts ClientOptions) *Client {
	if opts.APIVersion == "" {
		opts.APIVersion = "2024-01"
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		apiVersion: opts.APIVersion,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst),
	}
}

type variantPayload struct {
	Variant struct {
		ID    string `json:"id"`
		Price string `json:"price"`
	} `json:"variant"`
}

// SetPrice implements service.PriceApplier.
func (c *Client) SetPrice(ctx context.Context, req service.PriceRequest) error {
	if req.Credentials.StoreDomain == "" || req.Credentials.AccessToken == "" {
		return fmt.Errorf("%w: missing store credentials", ErrPriceRejected)
	}
	if req.ExternalID == "" {
		return fmt.Errorf("%w: product %s has no external id", ErrPriceRejected, req.ProductID)
	}
	if !req.NewPrice.IsPositive() {
		return fmt.Errorf("%w: price %s is not positive", ErrPriceRejected, req.NewPrice)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var payload variantPayload
	payload.Variant.ID = req.ExternalID
	payload.Variant.Price = req.NewPrice.StringFixed(2)
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/admin/api/%s/variants/%s.json", baseURL(req.Credentials.StoreDomain), c.apiVersion, req.ExternalID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Shopify-Access-Token", req.Credentials.AccessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		logger.Warn().Err(apiErr).Msgf("Price update of product %s rejected (retryable=%t)", req.ProductID, IsRetryable(apiErr))
		return apiErr
	}
	return nil
}

func baseURL(domain string) string {
	domain = strings.TrimRight(domain, "/")
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}
