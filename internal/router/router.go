package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/seojunpark/carpool-backend/internal/handler"
	"github.com/seojunpark/carpool-backend/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes.
// Unauthenticated operations live under /v1/auth, while protected
// endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Refresh rotates the refresh token; refresh-access only issues a new
	// access token.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout does not require JWT authentication: a refresh token in the
	// body is enough to close that session.
	g.POST("/logout", a.Logout)
	e.POST("/v1/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("USER", "ADMIN"))
	auth.GET("/me", a.Me)
}

// RegisterRooms wires the room lifecycle, settlement, chat and bank
// account endpoints under /v1.  Everything here requires a valid access
// token.  browseCache, when non-nil, caches the public room browse
// responses in Redis.
func RegisterRooms(
	e *echo.Echo,
	jwtSecret string,
	rooms *handler.RoomHandler,
	settlements *handler.SettlementHandler,
	chat *handler.ChatHandler,
	accounts *handler.AccountHandler,
	browseCache echo.MiddlewareFunc,
) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("USER", "ADMIN"))

	// Room lifecycle.
	auth.POST("/rooms", rooms.Create)
	if browseCache != nil {
		auth.GET("/rooms", rooms.List, browseCache)
	} else {
		auth.GET("/rooms", rooms.List)
	}
	auth.GET("/rooms/:id", rooms.Get)
	auth.PATCH("/rooms/:id", rooms.Update)
	auth.DELETE("/rooms/:id", rooms.Remove)
	auth.POST("/rooms/:id/join", rooms.Join)
	auth.POST("/rooms/:id/leave", rooms.Leave)
	auth.POST("/rooms/:id/kick", rooms.Kick)
	auth.POST("/rooms/:id/kick/cancel", rooms.CancelKick)
	auth.POST("/rooms/:id/delegate", rooms.Delegate)
	auth.POST("/rooms/:id/deactivate", rooms.Deactivate)
	auth.PUT("/rooms/:id/mute", rooms.SetMute)

	// Settlement state machine.
	auth.POST("/rooms/:id/settlement", settlements.Request)
	auth.GET("/rooms/:id/settlement", settlements.Get)
	auth.PATCH("/rooms/:id/settlement", settlements.Update)
	auth.DELETE("/rooms/:id/settlement", settlements.Cancel)
	auth.POST("/rooms/:id/settlement/complete", settlements.Complete)
	auth.GET("/rooms/:id/settlement/pay-status", settlements.GetPayStatus)
	auth.PUT("/rooms/:id/settlement/pay-status", settlements.SetPayStatus)

	// Chat.
	auth.POST("/rooms/:id/messages", chat.Append)
	auth.GET("/rooms/:id/messages", chat.Page)
	auth.GET("/rooms/:id/messages/last", chat.Last)
	auth.PATCH("/rooms/:id/messages/:token", chat.Edit)
	auth.DELETE("/rooms/:id/messages/:token", chat.Delete)
	auth.PUT("/rooms/:id/read", chat.MarkRead)

	// Bank account for settlement snapshots.
	auth.PUT("/account", accounts.Put)
	auth.GET("/account", accounts.Get)
}

// RegisterWS mounts the realtime socket.  JWT middleware runs on the
// upgrade request; browser clients pass the token as a query parameter.
func RegisterWS(e *echo.Echo, jwtSecret string, ws *handler.WSHandler) {
	e.GET("/ws", ws.Serve, middleware.JWTAuth(jwtSecret))
}
