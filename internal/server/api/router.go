package api

import (
	"net/http"

	"passiflora/internal/server/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// authBodyLimit caps JSON bodies on the account routes.
const authBodyLimit = "64K"

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, limiter *RateLimiter, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	e.Use(RequestLogger())
	e.Use(limiter.Middleware())

	e.GET("/health", handler.HandleHealth)

	// Accounts
	bodyLimit := middleware.BodyLimit(authBodyLimit)
	e.POST("/login", handler.HandleLogin, bodyLimit)
	e.POST("/register", handler.HandleRegister, RegistrationGate(cfg.AllowRegistration), bodyLimit)

	// Files
	e.GET("/files/:user_id", handler.HandleListFiles)
	e.POST("/files", handler.HandleUpload)
	e.GET("/files/:user_id/:file_id", handler.HandleDownload)

	return e
}
