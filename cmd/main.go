package main

import (
	"log"

	"go.uber.org/fx"

	"crosspost-connect/internal/config"
	"crosspost-connect/internal/service"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fx.New(service.Options(cfg)).Run()
}
