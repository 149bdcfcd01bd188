package main

import (
	"fmt"
	"net/http"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/koorier/onboarding-api/internal/config"
	"github.com/koorier/onboarding-api/internal/router"
	"github.com/koorier/onboarding-api/internal/ws"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg := config.Load()

	hub := ws.NewHub()
	go hub.Run()

	r := router.New(cfg, hub)

	log.Printf("Starting onboarding API on :%s", cfg.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatal(err)
	}
}
