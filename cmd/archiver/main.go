// cmd/archiver/main.go is an asynchronous worker that pops finished-match
// records from the redis queue and persists them to PostgreSQL, applying the
// rating update for both players.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/soliduel/soliduel/internal/database"
	"github.com/soliduel/soliduel/internal/store"
)

const popTimeout = 5 * time.Second

func main() {
	logger := logrus.New()

	database.ConnectDB()
	st, err := store.ConnectRedis(logger)
	if err != nil {
		logger.Fatalf("redis connect failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("archiver started")
	for {
		rec, err := st.DequeueMatch(ctx, popTimeout)
		if ctx.Err() != nil {
			logger.Info("archiver stopping")
			return
		}
		if err != nil {
			logger.Warnf("dequeue failed: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if rec == nil {
			// Timed out waiting; poll again.
			continue
		}

		if err := database.RecordMatch(ctx, rec); err != nil {
			logger.Errorf("failed to archive match %s: %v", rec.RoomID, err)
			continue
		}
		logger.WithFields(logrus.Fields{
			"room":   rec.RoomID,
			"winner": rec.Winner,
			"draw":   rec.Draw,
		}).Info("match archived")
	}
}
