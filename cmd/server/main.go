// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/soliduel/soliduel/internal/auth"
	"github.com/soliduel/soliduel/internal/database"
	"github.com/soliduel/soliduel/internal/handlers"
	"github.com/soliduel/soliduel/internal/middleware"
	"github.com/soliduel/soliduel/internal/session"
	"github.com/soliduel/soliduel/internal/store"
)

func main() {
	auth.Init()
	database.ConnectDB()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	st, err := store.ConnectRedis(logger)
	if err != nil {
		logger.Fatalf("redis connect failed: %v", err)
	}

	sessions := session.NewManager(logger, st, session.Options{Queue: st})

	mux := http.NewServeMux()

	// user endpoints
	mux.HandleFunc("/user/create", handlers.CreateUserHandler)
	mux.HandleFunc("/user/login", handlers.LoginHandler)
	mux.HandleFunc("/user/claim", handlers.ClaimEphemeralHandler)

	// room endpoints
	mux.Handle("/room/create", middleware.LogMiddleware(logger)(
		handlers.CreateRoomHandler(st),
	))
	mux.Handle("/room/ws/", middleware.LogMiddleware(logger)(
		handlers.RoomWSHandler(logger, st, sessions),
	))
	mux.Handle("/room/", middleware.LogMiddleware(logger)(
		handlers.GetRoomHandler(st),
	))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
