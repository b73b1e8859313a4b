package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tasklane/internal/api"
	"tasklane/internal/app/service"
	"tasklane/internal/common/security"
	"tasklane/internal/domain/repository"
	"tasklane/internal/platform/config"
	"tasklane/internal/platform/database"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	fmt.Println("Configuration loaded.")

	// 2. Token issuer (signing key and TTL come from config, nowhere else)
	tokens := security.NewTokenIssuer(cfg.JWTKey, cfg.JWTExp)

	// 3. Initialize Database
	db := database.Connect(cfg.DBConnStr)
	defer database.Close(db)

	// 4. Initialize Repositories
	userRepo := repository.NewPgUserRepository(db)
	taskRepo := repository.NewPgTaskRepository(db)

	// 5. Initialize Services
	authService := service.NewAuthService(userRepo, tokens, cfg.BcryptCost)
	taskService := service.NewTaskService(taskRepo)
	transferService := service.NewTransferService(db, taskRepo)

	// 6. Initialize Router & HTTP Server
	router := api.NewRouter(tokens, userRepo, authService, taskService, transferService)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
		}
	}()
	log.Println("Server started successfully.")

	<-stop // Wait for interrupt signal

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server stopped gracefully.")
}
