package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bridge-backend/internal/app"
	"bridge-backend/internal/config"
	"bridge-backend/internal/db"
	"bridge-backend/internal/router"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: config.yaml, prefers config.local.yaml)")
	flag.Parse()

	log.Println("🚀 Starting bridge backend...")

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Database is optional: without a DSN the endpoint runs on in-memory
	// stores (single-node mode, no durability across restarts).
	if config.AppConfig.Database.DSN != "" {
		db.InitDB()
	} else {
		log.Println("⚠️ No database DSN configured, running with in-memory stores")
	}

	container, err := app.InitializeContainer(logger)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer container.Cleanup()

	r := router.SetupRouter(container, logger)

	host := config.AppConfig.Server.Host
	port := config.AppConfig.Server.Port
	if port == 0 {
		port = 8080
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("✅ Bridge endpoint listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("⚠️ Forced shutdown: %v", err)
	}
	log.Println("✅ Server stopped")
}
