package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/mistchat/relay-backend/internal/config"
	"github.com/mistchat/relay-backend/internal/middleware"
	"github.com/mistchat/relay-backend/internal/registry"
	"github.com/mistchat/relay-backend/internal/relay"
	"github.com/mistchat/relay-backend/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	storeClient := store.NewClient(cfg.StoreURL, cfg.StoreIDField, cfg.StoreTimeout)
	reg := registry.New()
	handler := relay.NewHandler(reg, storeClient, cfg.SendBufferSize)

	r := mux.NewRouter()
	r.HandleFunc("/ws", handler.ServeWS)
	r.HandleFunc("/api/v1/conversations", handler.ListConversations).Methods(http.MethodGet)

	var root http.Handler = r
	if cfg.AllowedOrigin != "" {
		root = middleware.CORS(cfg.AllowedOrigin)(r)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("Server started at :%d, persisting to %s", cfg.Port, cfg.StoreURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
