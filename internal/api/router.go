package api

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	JWTSecret string
	RateLimit float64 // requests per second per client
	RateBurst int
}

// NewRouter builds the echo server with middleware and pricing routes.
func NewRouter(h *PricingHandler, opts RouterOptions) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	limiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(opts.RateLimit),
				Burst:     opts.RateBurst,
				ExpiresIn: 3 * time.Minute,
			}),
		IdentifierExtractor: func(context echo.Context) (string, error) {
			return context.RealIP(), nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return context.JSON(429, map[string]string{"error": "rate limit exceeded"})
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return context.JSON(429, map[string]string{"error": "rate limit exceeded"})
		},
	}

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RateLimiterWithConfig(limiterConfig))

	e.GET("/pricing/health", func(c echo.Context) error {
		return c.JSON(200, map[string]interface{}{
			"status":  "ok",
			"service": "dynamic-pricing-service",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	g := e.Group("/pricing")
	g.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(opts.JWTSecret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(JwtCustomClaims)
		},
	}))
	g.GET("/products/:id/config", h.GetConfig)
	g.PUT("/products/:id/config", h.UpdateConfig)
	g.GET("/products/:id/history", h.GetHistory)
	g.POST("/stores/:id/run", h.RunStore)

	return e
}
