package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/relaycore/relay/internal/relay"
	"github.com/relaycore/relay/internal/rooms"
)

func main() {
	log.Println("Starting room service...")

	cfg := rooms.LoadConfig()

	store, err := rooms.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer store.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		log.Fatalf("redis: %v", err)
	}
	log.Printf("Connected to Redis at %s", cfg.RedisURL)

	service, err := rooms.NewService(store)
	if err != nil {
		log.Fatalf("service: %v", err)
	}

	server := relay.CreateServer(cfg.Port, service.Router())
	go func() {
		if err := relay.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("Shutdown signal received")
	if err := relay.ShutdownServer(server, 10*time.Second); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	log.Println("Shutdown complete")
}
