package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/cabtrips/internal/backend"
	"github.com/ukydev/cabtrips/internal/config"
	"github.com/ukydev/cabtrips/internal/db"
	"github.com/ukydev/cabtrips/internal/events"
	"github.com/ukydev/cabtrips/internal/handlers"
	"github.com/ukydev/cabtrips/internal/logging"
	"github.com/ukydev/cabtrips/internal/middleware"
	"github.com/ukydev/cabtrips/internal/mockdata"
	"github.com/ukydev/cabtrips/internal/session"
	"github.com/ukydev/cabtrips/internal/source"
	"go.mongodb.org/mongo-driver/mongo"
)

const shutdownTimeout = 10 * time.Second

// app is the wired view API.
type app struct {
	sessions *session.Manager
	views    *handlers.ViewRegistry
	source   *source.Source
	limiter  *middleware.RateLimitMiddleware
	handler  http.Handler
}

// newApp wires the view API over the backend at cfg.BackendURL. Sessions
// persist to store and trip status events arrive on bus.
func newApp(ctx context.Context, cfg *config.Config, store session.Store, bus events.Bus, logger *log.Entry) (*app, error) {
	client := backend.NewClient(cfg.BackendURL, cfg.FetchTimeout)

	var mock *mockdata.Generator
	if cfg.MockOnError {
		mock = mockdata.NewGenerator(time.Now().UnixNano(), time.Now)
	}
	src := source.New(client, source.Options{
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
		Mock:      mock,
	})

	sessions := session.NewManager(store, time.Now)
	if err := sessions.Initialize(ctx); err != nil {
		return nil, err
	}

	viewOpts := handlers.ViewOptions{
		PageSize:    cfg.PageSize,
		SearchDelay: cfg.SearchDelay,
		Location:    time.Local,
		Logger:      logger,

		LegacyStatuses: cfg.LegacyStatus,
	}
	views := handlers.NewViewRegistry(src, client, viewOpts)
	sessions.OnInvalidate(func(s *session.Session) {
		if n := views.CloseSession(s.ID); n > 0 {
			logger.WithFields(log.Fields{"session": s.ID, "views": n}).Debug("Closed views of ended session")
		}
		if p, ok := viewOpts.Profile(s.Role); ok {
			src.Forget(p.Scope, s.UserID)
		}
	})
	if err := bus.SubscribeStatus(func(ev events.StatusEvent) {
		if n := views.ApplyStatus(ev); n > 0 {
			logger.WithFields(log.Fields{"trip_id": ev.TripID, "status": ev.Status, "views": n}).Debug("Applied trip status event")
		}
	}); err != nil {
		logger.WithError(err).Warn("Failed to subscribe to trip status events")
	}

	limiter := middleware.NewRateLimitMiddleware()
	router := &handlers.Router{
		Auth:     handlers.NewAuthHandler(client, sessions),
		Trips:    handlers.NewTripsHandler(views, src, client, viewOpts),
		Fleet:    handlers.NewFleetHandler(client),
		Sessions: sessions,
		Limiter:  limiter,
		Origins:  cfg.CORSOrigins,
		Logger:   logger,
	}
	return &app{
		sessions: sessions,
		views:    views,
		source:   src,
		limiter:  limiter,
		handler:  router.Handler(),
	}, nil
}

// openSessionStore persists sessions to MongoDB, or keeps them in memory
// when the database is unreachable.
func openSessionStore(ctx context.Context, cfg *config.Config, logger *log.Entry) (session.Store, *mongo.Client) {
	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		logger.WithError(err).Warn("MongoDB unavailable, sessions will not survive a restart")
		return session.NewMemoryStore(), nil
	}
	logger.Info("Connected to MongoDB")
	return db.NewStore(client.Database(cfg.MongoDB)).Sessions, client
}

func main() {
	cfg := config.Load()
	logger := logging.Setup("cabtrips", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, mongoClient := openSessionStore(ctx, cfg, logger)
	if mongoClient != nil {
		defer func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				logger.WithError(err).Warn("Failed to disconnect from MongoDB")
			}
		}()
	}

	bus, err := events.New(events.Options{Broker: cfg.MQTTBroker, ClientID: cfg.MQTTClient})
	if err != nil {
		logger.WithError(err).Warn("MQTT unavailable, live trip updates disabled")
		bus = events.Noop{}
	}
	defer bus.Close()

	a, err := newApp(ctx, cfg, store, bus, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to start")
	}
	defer a.views.Close()

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.limiter.Sweep(time.Minute)
			}
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.WithFields(log.Fields{
			"port":    cfg.Port,
			"backend": cfg.BackendURL,
		}).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
}
