package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reportdesk/internal/config"
	"reportdesk/internal/fakeapi"
	"reportdesk/internal/logging"
)

func main() {
	cfg := config.LoadServer()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	store := fakeapi.NewStore()
	if err := store.SeedFromFile(cfg.UsersPath); err != nil {
		log.Fatalf("seed users: %v", err)
	}
	auth := fakeapi.NewAuth(store, cfg.JWTSecret)

	handler := fakeapi.NewRouter(logger, store, auth)
	server := fakeapi.NewServer(cfg.HTTPAddr, handler, logger)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
