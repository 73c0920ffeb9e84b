package config_test

import (
	"context"
	"fmt"
	"log"

	"github.com/nosdav/nosdav/config"
)

func ExampleLoad() {
	// Load with defaults only (no config file)
	cfg, err := config.Load(nil, nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Addr: %s, Mode: %s\n", cfg.Server.Addr(), cfg.Storage.Mode)
	// Output: Addr: :3118, Mode: multiuser
}

func ExampleWithContext() {
	cfg, _ := config.Load(nil, nil)

	// Store config in context
	ctx := config.WithContext(context.Background(), cfg)

	// Retrieve later (e.g., in a subcommand)
	retrieved, err := config.FromContext(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Retrieved port: %d\n", retrieved.Server.Port)
	// Output: Retrieved port: 3118
}
