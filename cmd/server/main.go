// Command main is the entry point for the Driftboard API server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"driftboard/internal/bootstrap"
	"driftboard/internal/config"
	"driftboard/internal/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, redisClient, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	srv, err := server.NewServerWithDeps(cfg, db, redisClient)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatal(err)
	}
}
