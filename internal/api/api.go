package api

import (
	"context"
	"errors"
	"strconv"

	"dynamic-pricing-service/internal/entity"
	"dynamic-pricing-service/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Runner starts a pricing run for one store.
type Runner interface {
	RunPricingAlgorithm(ctx context.Context, storeID, storeDomain string, creds entity.Credentials) entity.RunResult
}

// ConfigManager reads and edits per-product pricing settings.
type ConfigManager interface {
	GetConfig(ctx context.Context, productID string) (*entity.PricingConfig, error)
	UpdateSettings(ctx context.Context, productID string, settings entity.Settings) (*entity.PricingConfig, error)
	History(ctx context.Context, productID string, limit int) ([]entity.PricingHistoryEntry, error)
}

// ProductLookup resolves the store a product belongs to.
type ProductLookup interface {
	GetProduct(ctx context.Context, productID string) (*entity.Product, error)
}

// JwtCustomClaims scopes a caller to one store. Role "admin" may act on any store.
type JwtCustomClaims struct {
	StoreID string `json:"store_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// PricingHandler handles pricing-related requests.
type PricingHandler struct {
	runner   Runner
	configs  ConfigManager
	products ProductLookup
}

// NewPricingHandler creates a new PricingHandler instance.
func NewPricingHandler(runner Runner, configs ConfigManager, products ProductLookup) *PricingHandler {
	return &PricingHandler{runner: runner, configs: configs, products: products}
}

// GetConfig returns a product's pricing config --> GET /pricing/products/:id/config
func (h *PricingHandler) GetConfig(c echo.Context) error {
	productID := c.Param("id")
	if ok, err := h.authorizeProduct(c, productID); !ok {
		return err
	}

	cfg, err := h.configs.GetConfig(c.Request().Context(), productID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(200, cfg)
}

// UpdateConfig changes the four tunables --> PUT /pricing/products/:id/config
func (h *PricingHandler) UpdateConfig(c echo.Context) error {
	productID := c.Param("id")
	if ok, err := h.authorizeProduct(c, productID); !ok {
		return err
	}

	var settings entity.Settings
	if err := c.Bind(&settings); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	cfg, err := h.configs.UpdateSettings(c.Request().Context(), productID, settings)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(200, cfg)
}

// GetHistory returns the latest decisions of a product --> GET /pricing/products/:id/history?limit=
func (h *PricingHandler) GetHistory(c echo.Context) error {
	productID := c.Param("id")
	if ok, err := h.authorizeProduct(c, productID); !ok {
		return err
	}

	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(400, map[string]string{"error": "Invalid limit"})
		}
		limit = n
	}

	entries, err := h.configs.History(c.Request().Context(), productID, limit)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(200, entries)
}

// RunStore triggers a pricing run --> POST /pricing/stores/:id/run
func (h *PricingHandler) RunStore(c echo.Context) error {
	storeID := c.Param("id")
	if !allowed(c, storeID) {
		return c.JSON(403, map[string]string{"error": "Forbidden"})
	}

	var req struct {
		StoreDomain string `json:"store_domain"`
	}
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(400, map[string]string{"error": "Invalid request payload"})
		}
	}

	res := h.runner.RunPricingAlgorithm(c.Request().Context(), storeID, req.StoreDomain, entity.Credentials{})
	if !res.Success {
		return c.JSON(500, res)
	}
	return c.JSON(200, res)
}

// authorizeProduct writes the error response itself when it returns false.
func (h *PricingHandler) authorizeProduct(c echo.Context, productID string) (bool, error) {
	p, err := h.products.GetProduct(c.Request().Context(), productID)
	if err != nil {
		return false, c.JSON(500, map[string]string{"error": err.Error()})
	}
	if p == nil {
		return false, c.JSON(404, map[string]string{"error": "Product not found"})
	}
	if !allowed(c, p.StoreID) {
		return false, c.JSON(403, map[string]string{"error": "Forbidden"})
	}
	return true, nil
}

func allowed(c echo.Context, storeID string) bool {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return false
	}
	claims, ok := token.Claims.(*JwtCustomClaims)
	if !ok {
		return false
	}
	return claims.Role == "admin" || claims.StoreID == storeID
}

func errorJSON(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		return c.JSON(404, map[string]string{"error": err.Error()})
	case errors.Is(err, entity.ErrInvalidConfig):
		return c.JSON(400, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrVersionConflict):
		return c.JSON(409, map[string]string{"error": err.Error()})
	}
	return c.JSON(500, map[string]string{"error": err.Error()})
}
