package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"messenger-api/internal/auth"
	"messenger-api/internal/handlers"
	"messenger-api/internal/middleware"
	"messenger-api/internal/observability"
	"messenger-api/internal/ws"
)

// application bundles the wired dependencies the router needs.
type application struct {
	toucher middleware.ActivityToucher
	jwt     *auth.JWTManager
	limiter *middleware.LimiterStore
	hub     *ws.Hub

	authHandler    *handlers.AuthHandler
	usersHandler   *handlers.UsersHandler
	friendsHandler *handlers.FriendsHandler
	chatsHandler   *handlers.ChatsHandler
}

// newRouter builds the gin engine: public auth routes behind the IP rate
// limiter, everything else behind bearer-token authentication.
func (app *application) newRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.HTTPMetricsMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := r.Group("/auth", middleware.RateLimit(app.limiter))
	{
		public.POST("/register", app.authHandler.Register)
		public.POST("/login", app.authHandler.Login)
	}

	authed := r.Group("/", middleware.Authenticate(app.jwt, app.toucher))
	{
		authed.GET("/users/me", app.usersHandler.Me)
		authed.PATCH("/users/me/image", app.usersHandler.UpdateImage)

		authed.POST("/friends/requests", app.friendsHandler.SendRequest)
		authed.POST("/friends/requests/:username/accept", app.friendsHandler.Accept)
		authed.POST("/friends/requests/:username/decline", app.friendsHandler.Decline)

		authed.POST("/chats/individual", app.chatsHandler.CreateIndividual)
		authed.POST("/chats/group", app.chatsHandler.CreateGroup)
		authed.GET("/chats/:id", app.chatsHandler.Get)
		authed.POST("/chats/:id/participants", app.chatsHandler.AddParticipants)
		authed.POST("/chats/:id/messages", app.chatsHandler.PostMessage)
		authed.PATCH("/chats/:id/image", app.chatsHandler.UpdateImage)

		authed.GET("/ws", app.serveWS)
	}

	return r
}

func (app *application) serveWS(c *gin.Context) {
	principalID, _, ok := middleware.Principal(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	app.hub.Serve(c, principalID)
}
