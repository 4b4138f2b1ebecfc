package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/relaycore/relay/internal/relay"
)

func main() {
	log.Println("Starting chat relay...")

	cfg := relay.LoadConfig()

	bridge := relay.NewBridge(cfg.BrokerURL)
	gateway := relay.NewGateway(cfg, bridge)
	bridge.OnMessage(gateway.HandleBrokerEvent)

	// Fail fast when the broker is unreachable: without it the relay cannot
	// perform cross-instance fan-out, and restarts belong to the supervisor.
	if err := bridge.Connect(); err != nil {
		log.Fatalf("broker: %v", err)
	}

	go gateway.Run()

	server := relay.CreateServer(cfg.Port, relay.Routes(gateway))
	go func() {
		if err := relay.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("Shutdown signal received")
	if err := relay.ShutdownServer(server, cfg.ShutdownTimeout); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := gateway.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Printf("Gateway shutdown: %v", err)
	}
	if err := bridge.Close(); err != nil {
		log.Printf("Broker close: %v", err)
	}
	log.Println("Shutdown complete")
}
