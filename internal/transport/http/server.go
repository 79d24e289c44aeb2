// Package http provides the HTTP server for the chat service.
package http

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/lo"

	v1 "github.com/xiaot623/roadchat/internal/transport/http/v1"
	"github.com/xiaot623/roadchat/internal/transport/ws"
)

// NewServer creates the echo server exposing the REST surface and the
// realtime endpoint. Request bodies larger than bodyLimit bytes are rejected.
func NewServer(handler *v1.Handler, gateway *ws.Server, validator echo.Validator, allowedOrigins []string, bodyLimit int64) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dB", bodyLimit)))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		// Session cookies must reach the API, so a wildcard is reflected.
		UnsafeWildcardOriginWithAllowCredentials: lo.Contains(allowedOrigins, "*"),
	}))

	handler.RegisterRoutes(e)
	e.GET("/ws", gateway.HandleWebSocket)

	return e
}
