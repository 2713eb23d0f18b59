// Command gate fronts the portal subdomains and admits only accounts with an
// approved access grant.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/arklim/portal-identity/internal/infra/app"
	"github.com/arklim/portal-identity/internal/infra/config"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadGate()
	if err != nil {
		log.Fatalf("failed to load gate config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.NewGate(ctx, cfg, version)
	if err != nil {
		log.Fatalf("failed to init gate: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Printf("gate stopped: %v", err)
		os.Exit(1)
	}
}
