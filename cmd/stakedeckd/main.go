package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"stakedeck/internal/api"
	"stakedeck/internal/backends"
	"stakedeck/internal/compute"
	"stakedeck/internal/pub"
	"stakedeck/internal/referral"
	"stakedeck/internal/staking"
	"stakedeck/internal/types"
	"stakedeck/internal/wallet"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Info("The .env file not found.")
	}

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "stakedeck.yaml"
	}
	cfg, err := types.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", configFile, err)
	}

	cache, err := backends.CacheBackendFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize result cache: %v", err)
	}
	markers, err := backends.StakeBackendFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize pending-stake store: %v", err)
	}
	referralStore, err := backends.ReferralBackendFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize referral store: %v", err)
	}
	sessionStore, err := backends.SessionBackendFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize session store: %v", err)
	}

	snsClient, err := backends.SNSClientFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize SNS client: %v", err)
	}
	publisher := pub.NewSNS(snsClient)
	bus := pub.NewBus()

	gateway := compute.NewHTTPGateway(cfg.NodeURL, cfg.NodeAPIKey)
	co := compute.NewCoordinator(gateway, cfg.Limiter, compute.WithCache(cache))

	book := staking.NewBook()
	poller := staking.NewPoller(co, cfg, book, markers, publisher, bus)
	svc := staking.NewService(co, cfg, book, markers, poller)
	referrals := referral.NewService(referralStore)
	sessions := wallet.NewManager(sessionStore, types.DefaultSessionTTL)

	if err := poller.ResumeFromMarkers(context.Background()); err != nil {
		log.WithError(err).Warn("Failed to resume pending transactions from markers")
	}

	stop, done := api.RunServerInterruptible(cfg.Port, sessions, svc, poller, referrals)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Infof("Received %s, shutting down", sig)
		close(stop)
		if err := <-done; err != nil {
			log.Fatalf("Server shutdown error: %v", err)
		}
	case err := <-done:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}
}
