package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"messenger-api/internal/auth"
	"messenger-api/internal/chatengine"
	"messenger-api/internal/config"
	"messenger-api/internal/data"
	"messenger-api/internal/db"
	"messenger-api/internal/friendship"
	"messenger-api/internal/handlers"
	"messenger-api/internal/middleware"
	"messenger-api/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.DatabaseName)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = dbClient.Close(ctx)
	}()

	if err := dbClient.CreateIndexes(ctx); err != nil {
		log.Fatalf("failed to create indexes: %v", err)
	}

	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	chatsStore := data.NewChatsStore(dbClient.ChatsCollection())
	msgsStore := data.NewMessagesStore(dbClient.MessagesCollection())
	imagesStore := data.NewImagesStore(dbClient.ImagesCollection())

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	limiter := middleware.NewLimiterStore(cfg.RateLimitRPM, cfg.RateLimitRPM, 5*time.Minute)
	defer limiter.Stop()

	hub := ws.NewHub()
	friends := friendship.NewManager(usersStore, dbClient)
	engine := chatengine.NewEngine(usersStore, chatsStore, msgsStore, imagesStore, dbClient)

	app := &application{
		toucher:        usersStore,
		jwt:            jwtMgr,
		limiter:        limiter,
		hub:            hub,
		authHandler:    handlers.NewAuthHandler(usersStore, jwtMgr, limiter),
		usersHandler:   handlers.NewUsersHandler(usersStore, jwtMgr, engine),
		friendsHandler: handlers.NewFriendsHandler(friends, usersStore, jwtMgr, hub),
		chatsHandler:   handlers.NewChatsHandler(engine, usersStore, jwtMgr, hub),
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.newRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("messenger API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
