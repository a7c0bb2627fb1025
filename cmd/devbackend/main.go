// Command devbackend runs the cab booking backend API on MongoDB for local
// development.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/cabtrips/internal/auth"
	"github.com/ukydev/cabtrips/internal/config"
	"github.com/ukydev/cabtrips/internal/db"
	"github.com/ukydev/cabtrips/internal/devbackend"
	"github.com/ukydev/cabtrips/internal/events"
	"github.com/ukydev/cabtrips/internal/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup("devbackend", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.WithError(err).Warn("Failed to disconnect from MongoDB")
		}
	}()
	database := client.Database(cfg.MongoDB)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		logger.WithError(err).Fatal("Failed to create indexes")
	}
	store := db.NewStore(database)

	authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create auth service")
	}

	bus, err := events.New(events.Options{Broker: cfg.MQTTBroker, ClientID: cfg.MQTTClient + "-backend"})
	if err != nil {
		logger.WithError(err).Warn("MQTT unavailable, trip status events disabled")
		bus = events.Noop{}
	}
	defer bus.Close()

	srv := devbackend.New(devbackend.Deps{
		Auth:          authService,
		Users:         store.Users,
		Bookings:      store.Bookings,
		Cabs:          store.Cabs,
		Verifications: store.Verifications,
		Events:        bus,
	}, devbackend.Options{
		ImageDir: cfg.ImageDir,
		Logger:   logger,
	})

	r := chi.NewRouter()
	r.Mount("/api", srv.Handler())

	httpServer := &http.Server{
		Addr:              ":" + cfg.BackendPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.WithFields(log.Fields{
			"port":     cfg.BackendPort,
			"database": cfg.MongoDB,
		}).Info("Backend listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
}
