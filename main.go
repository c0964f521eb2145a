package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ahmadzakiakmal/insurance-ledger/chain"
	"github.com/ahmadzakiakmal/insurance-ledger/config"
	"github.com/ahmadzakiakmal/insurance-ledger/contracts"
	"github.com/ahmadzakiakmal/insurance-ledger/lifecycle"
	"github.com/ahmadzakiakmal/insurance-ledger/repository"
	"github.com/ahmadzakiakmal/insurance-ledger/server"
	"github.com/ahmadzakiakmal/insurance-ledger/session"
	"github.com/ahmadzakiakmal/insurance-ledger/srvreg"
	"github.com/ahmadzakiakmal/insurance-ledger/validator"
	"github.com/ahmadzakiakmal/insurance-ledger/wallet"

	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

var (
	configFile string
	httpPort   string
)

func init() {
	flag.StringVar(&configFile, "config", "", "Config file path (optional)")
	flag.StringVar(&httpPort, "http-port", "", "HTTP web server port, overrides the config file")
}

func main() {
	// Parse command line flags
	flag.Parse()

	log.Println("=== Starting Vehicle Insurance Ledger ===")

	// Load configuration
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("Loading config: %v", err)
	}
	if httpPort != "" {
		cfg.HTTPPort = httpPort
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration data: %v", err)
	}
	log.Printf("HTTP Port: %s", cfg.HTTPPort)
	log.Printf("Confirmation delay: %s - %s", cfg.ConfirmMinDelay, cfg.ConfirmMaxDelay)

	// Create logger
	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err = cmtflags.ParseLogLevel(cfg.LogLevel, logger, "info")
	if err != nil {
		log.Fatalf("Failed to parse log level: %v", err)
	}

	// Initialize Badger journal for transactions
	journal, err := repository.OpenMemoryJournal(logger)
	if err != nil {
		log.Fatalf("Opening transaction journal: %v", err)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			log.Printf("Closing transaction journal: %v", err)
		}
	}()

	// Entity store on in-memory SQLite
	store, err := repository.OpenMemoryStore(logger)
	if err != nil {
		log.Fatalf("Opening entity store: %v", err)
	}
	defer func() {
		if err := repository.CloseStore(store); err != nil {
			log.Printf("Closing entity store: %v", err)
		}
	}()

	// Chain simulation
	simConfig := chain.DefaultSimulatorConfig()
	simConfig.MinConfirmDelay = cfg.ConfirmMinDelay
	simConfig.MaxConfirmDelay = cfg.ConfirmMaxDelay
	simConfig.FailureRate = cfg.FailureRate
	sim := chain.NewRandomSimulator(simConfig)
	factory := chain.NewFactory(sim)

	// Wallet is the signing context of every on-chain write
	w := wallet.NewWallet(logger)

	repo := repository.NewRepository(store, journal, factory, w, logger)
	if cfg.SeedParticipants {
		repo.Seed()
	}

	confirmer := lifecycle.NewConfirmer(repo, sim, logger)
	if err := confirmer.Start(); err != nil {
		log.Fatalf("Starting confirmer: %v", err)
	}
	defer func() {
		logger.Info("Stopping confirmer...")
		if err := confirmer.Stop(); err != nil {
			logger.Error("Error stopping confirmer", "err", err)
		}
	}()
	repo.SetupScheduler(confirmer)

	deployed, err := contracts.Load()
	if err != nil {
		log.Fatalf("Loading contract descriptions: %v", err)
	}
	for _, c := range deployed {
		logger.Info("Contract description loaded", "name", c.Name, "address", c.Address, "functions", len(c.Functions))
	}

	// Initialize Service Registry
	serviceRegistry, err := srvreg.NewServiceRegistry(srvreg.Dependencies{
		Repository:        repo,
		Validator:         validator.NewValidator(repo, w, sim, logger),
		Wallet:            w,
		Session:           session.NewManager(repo, w, logger),
		Confirmer:         confirmer,
		RequiredApprovals: cfg.RequiredApprovals,
	}, logger)
	if err != nil {
		log.Fatalf("Creating service registry: %v", err)
	}
	serviceRegistry.RegisterDefaultServices()

	// Start Web Server
	webserver := server.NewWebServer(cfg.HTTPPort, logger, serviceRegistry, repo, journal, confirmer)
	if err := webserver.Start(); err != nil {
		log.Fatalf("Starting HTTP server: %v", err)
	}

	// Display startup information
	logger.Info("=== Vehicle Insurance Ledger Successfully Started ===")
	logger.Info("HTTP API", "url", fmt.Sprintf("http://localhost:%s/api", cfg.HTTPPort))
	logger.Info("Transaction feed", "url", fmt.Sprintf("ws://localhost:%s/ws/transactions", cfg.HTTPPort))

	logger.Info("Available Endpoints:")
	for _, route := range serviceRegistry.Routes() {
		logger.Info("  " + route)
	}
	logger.Info("  GET  /debug - Debug information")

	// Wait for interrupt signal to gracefully shut down
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("Received shutdown signal, shutting down gracefully...")

	// Create deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := webserver.Shutdown(ctx); err != nil {
		logger.Error("Error shutting down HTTP web server", "err", err)
	}
	logger.Info("Vehicle Insurance Ledger gracefully stopped")
}
