// Command seeder fills a backend with random trips. It signs in a customer
// and a driver, books trips across Indian cities and walks each one through
// a random part of its lifecycle.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/cabtrips/internal/backend"
	"github.com/ukydev/cabtrips/internal/config"
	"github.com/ukydev/cabtrips/internal/logging"
	"github.com/ukydev/cabtrips/internal/mockdata"
	"github.com/ukydev/cabtrips/internal/models"
)

// Backend is the part of the backend client the seeder drives.
type Backend interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error)
	BookTrip(ctx context.Context, token string, req models.BookRequest) (map[string]any, error)
	UpdateTripStatus(ctx context.Context, token, tripID, action string) (*models.StatusUpdate, error)
	RateTrip(ctx context.Context, token, tripID string, rating float64) error
}

// outcome is how far a seeded trip gets.
type outcome struct {
	status  string
	actions []string // driver actions; "cancel" is sent by the customer
	weight  int
}

var outcomes = []outcome{
	{status: models.BookingRequested, weight: 10},
	{status: models.BookingCancelled, actions: []string{"cancel"}, weight: 15},
	{status: models.BookingAccepted, actions: []string{"accept"}, weight: 15},
	{status: models.BookingInProgress, actions: []string{"accept", "start"}, weight: 10},
	{status: models.BookingCompleted, actions: []string{"accept", "start", "complete"}, weight: 50},
}

type seeder struct {
	backend  Backend
	gen      *mockdata.Generator
	rng      *rand.Rand
	password string

	customer *models.LoginResponse
	driver   *models.LoginResponse
}

func newSeeder(b Backend, password string, seed int64) *seeder {
	return &seeder{
		backend:  b,
		gen:      mockdata.NewGenerator(seed, time.Now),
		rng:      rand.New(rand.NewSource(seed)),
		password: password,
	}
}

// account signs username in, registering it first when the backend does not
// know it.
func (s *seeder) account(ctx context.Context, username string, role models.Role) (*models.LoginResponse, error) {
	resp, err := s.backend.Login(ctx, models.LoginRequest{Username: username, Password: s.password})
	if err == nil {
		return resp, nil
	}
	if !errors.Is(err, backend.ErrUnauthorized) {
		return nil, fmt.Errorf("login %s: %w", username, err)
	}
	resp, err = s.backend.Register(ctx, models.RegisterRequest{
		Username:  username,
		Email:     username + "@seed.cabtrips.dev",
		Password:  s.password,
		FirstName: strings.ToUpper(username[:1]) + username[1:],
		LastName:  "Seed",
		Role:      role,
	})
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", username, err)
	}
	log.WithFields(log.Fields{
		"username": username,
		"role":     role,
	}).Info("Registered seed account")
	return resp, nil
}

// signIn prepares the customer and driver accounts.
func (s *seeder) signIn(ctx context.Context, username string) error {
	var err error
	if s.customer, err = s.account(ctx, username, models.RoleCustomer); err != nil {
		return err
	}
	if s.driver, err = s.account(ctx, username+"_driver", models.RoleDriver); err != nil {
		return err
	}
	return nil
}

func (s *seeder) pickOutcome() outcome {
	total := 0
	for _, o := range outcomes {
		total += o.weight
	}
	n := s.rng.Intn(total)
	for _, o := range outcomes {
		if n < o.weight {
			return o
		}
		n -= o.weight
	}
	return outcomes[len(outcomes)-1]
}

// seedTrip books one trip and advances it. It returns the trip id and the
// status it was left in.
func (s *seeder) seedTrip(ctx context.Context) (string, string, error) {
	req := s.gen.BookRequest(s.customer.User.ID.Hex(), s.customer.User.FullName())
	raw, err := s.backend.BookTrip(ctx, s.customer.Token, req)
	if err != nil {
		return "", "", fmt.Errorf("book trip: %w", err)
	}
	tripID, _ := raw["tripBookingId"].(string)
	if tripID == "" {
		return "", "", errors.New("book trip: response has no tripBookingId")
	}

	o := s.pickOutcome()
	for _, action := range o.actions {
		token := s.driver.Token
		if action == "cancel" {
			token = s.customer.Token
		}
		if _, err := s.backend.UpdateTripStatus(ctx, token, tripID, action); err != nil {
			return tripID, "", fmt.Errorf("%s %s: %w", action, tripID, err)
		}
	}
	if o.status == models.BookingCompleted && s.rng.Intn(4) > 0 {
		rating := float64(3 + s.rng.Intn(3))
		if err := s.backend.RateTrip(ctx, s.customer.Token, tripID, rating); err != nil {
			return tripID, o.status, fmt.Errorf("rate %s: %w", tripID, err)
		}
	}
	log.WithFields(log.Fields{
		"trip_id": tripID,
		"from":    req.FromCity,
		"to":      req.ToCity,
		"status":  o.status,
	}).Info("Seeded trip")
	return tripID, o.status, nil
}

// seed books n trips and counts them by final status. It stops at the first
// error.
func (s *seeder) seed(ctx context.Context, n int) (map[string]int, error) {
	counts := make(map[string]int)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return counts, err
		}
		_, status, err := s.seedTrip(ctx)
		if err != nil {
			return counts, err
		}
		counts[status]++
	}
	return counts, nil
}

// loop seeds one trip per tick until ctx ends, logging failures.
func (s *seeder) loop(ctx context.Context, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if _, _, err := s.seedTrip(ctx); err != nil {
				log.WithError(err).Error("Failed to seed trip")
			}
		}
	}
}

func main() {
	cfg := config.Load()
	logger := logging.Setup("seeder", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := newSeeder(backend.NewClient(cfg.BackendURL, cfg.FetchTimeout), cfg.SeedPassword, time.Now().UnixNano())
	if err := s.signIn(ctx, cfg.SeedUsername); err != nil {
		logger.WithError(err).Fatal("Failed to sign in seed accounts. Is the backend reachable?")
	}

	logger.WithFields(log.Fields{
		"trips":    cfg.SeedTrips,
		"api_url":  cfg.BackendURL,
		"interval": cfg.SeedInterval,
	}).Info("Starting trip seeding")

	counts, err := s.seed(ctx, cfg.SeedTrips)
	fields := log.Fields{}
	for status, n := range counts {
		fields[strings.ToLower(status)] = n
	}
	if err != nil {
		logger.WithError(err).WithFields(fields).Fatal("Seeding stopped")
	}
	logger.WithFields(fields).Info("Seeding completed")

	if cfg.SeedInterval > 0 {
		logger.Info("Continuous seeding started")
		s.loop(ctx, cfg.SeedInterval)
	}
}
