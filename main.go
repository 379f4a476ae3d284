package main

import (
	"flag"

	log "github.com/sirupsen/logrus"

	"github.com/storekit/storefront-api/server"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to a config file or SSM parameter name")
	flag.Parse()

	config, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	srv, err := server.NewServer(config)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	log.Info("Starting storefront API server")
	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}
