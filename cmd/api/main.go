// Command api serves the portal identity HTTP API and, when enabled, the gRPC
// access service used by the subdomain gate.
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

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load portal config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg, version)
	if err != nil {
		log.Fatalf("failed to start portal identity service %s: %v", version, err)
	}

	if err := application.Run(ctx); err != nil {
		log.Printf("portal identity service stopped: %v", err)
		os.Exit(1)
	}
}
