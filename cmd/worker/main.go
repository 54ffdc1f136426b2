package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"classattend/internal/attendance"
	"classattend/internal/config"
	"classattend/internal/queue"
	"classattend/internal/store"
)

// Worker consumes recorded-attendance events and refreshes each affected
// class's derived attendance percentages.
func main() {
	cfg := config.Load()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classattend:recorded")
	}

	svc := attendance.NewService(attendance.NewRepository(db.Client))

	events, err := q.Consume(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("queue consume init failed")
	}

	log.Info().Msg("worker started, waiting for events")
	for evt := range events {
		if evt.ClassID == "" {
			continue
		}
		if err := svc.RecomputePercentages(ctx, evt.ClassID); err != nil {
			log.Error().Err(err).Str("class_id", evt.ClassID).Msg("recompute failed")
			continue
		}
		log.Info().
			Str("class_id", evt.ClassID).
			Str("student_id", evt.StudentID).
			Str("date", evt.Date).
			Bool("manual", evt.Manual).
			Msg("percentages refreshed")
	}

	log.Info().Msg("worker stopped")
}
