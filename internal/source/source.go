// Package source loads trip payloads for the trip views, falling back to the
// last good response or to generated trips when the backend fails.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bluele/gcache"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/cabtrips/internal/backend"
	"github.com/ukydev/cabtrips/internal/mockdata"
	"github.com/ukydev/cabtrips/internal/triplist"
)

// Backend is the part of the backend client a Source reads trips from.
type Backend interface {
	TripsByDriver(ctx context.Context, token, driverID string) ([]map[string]any, error)
	TripsByCustomer(ctx context.Context, token, customerID string) ([]map[string]any, error)
	AllTrips(ctx context.Context, token string) ([]map[string]any, error)
}

// Options configures a Source.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
	Mock      *mockdata.Generator // nil disables the generated fallback
	MockSize  int
	Clock     func() time.Time
}

type entry struct {
	records []map[string]any
	at      time.Time
}

// Source fetches raw trips per user and scope.
type Source struct {
	backend  Backend
	cache    gcache.Cache
	mock     *mockdata.Generator
	mockSize int
	clock    func() time.Time
}

// New returns a Source backed by b.
func New(b Backend, opts Options) *Source {
	size := opts.CacheSize
	if size <= 0 {
		size = 1000
	}
	builder := gcache.New(size).LRU()
	if opts.CacheTTL > 0 {
		builder = builder.Expiration(opts.CacheTTL)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	mockSize := opts.MockSize
	if mockSize <= 0 {
		mockSize = 25
	}
	return &Source{
		backend:  b,
		cache:    builder.Build(),
		mock:     opts.Mock,
		mockSize: mockSize,
		clock:    clock,
	}
}

// CacheKey identifies the trips of one user in one scope.
func CacheKey(scope triplist.Scope, userID string) string {
	return string(scope) + ":" + userID
}

// Fetch loads the trips userID may see in scope. When the backend fails it
// returns the last good result for the same key marked stale, then
// generated trips when enabled, and otherwise the error. Cancellation and
// authentication failures are returned as is.
func (s *Source) Fetch(ctx context.Context, token, userID string, scope triplist.Scope) (triplist.FetchResult, error) {
	key := CacheKey(scope, userID)
	records, err := s.load(ctx, token, userID, scope)
	if err == nil {
		s.cache.Set(key, entry{records: records, at: s.clock()})
		return triplist.FetchResult{Records: records}, nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, backend.ErrUnauthorized) {
		return triplist.FetchResult{}, err
	}

	logger := log.WithFields(log.Fields{"scope": scope, "user_id": userID})
	if cached, cerr := s.cache.Get(key); cerr == nil {
		e := cached.(entry)
		logger.WithError(err).Warn("Backend unavailable, serving cached trips")
		return triplist.FetchResult{
			Records: e.records,
			Stale:   true,
			Message: fmt.Sprintf("Could not reach the server. Showing trips loaded at %s.", e.at.Format("15:04")),
		}, nil
	}

	if s.mock != nil {
		opts := mockdata.Options{}
		switch scope {
		case triplist.ScopeDriver:
			opts.DriverID = userID
		case triplist.ScopeCustomer:
			opts.CustomerID = userID
		}
		raws, merr := mockdata.Raw(s.mock.Bookings(s.mockSize, opts))
		if merr == nil {
			logger.WithError(err).Warn("Backend unavailable, serving sample trips")
			return triplist.FetchResult{
				Records: raws,
				Stale:   true,
				Message: "Could not reach the server. Showing sample trips.",
			}, nil
		}
		logger.WithError(merr).Error("Failed to generate sample trips")
	}

	return triplist.FetchResult{}, err
}

func (s *Source) load(ctx context.Context, token, userID string, scope triplist.Scope) ([]map[string]any, error) {
	switch scope {
	case triplist.ScopeDriver:
		return s.backend.TripsByDriver(ctx, token, userID)
	case triplist.ScopeCustomer:
		return s.backend.TripsByCustomer(ctx, token, userID)
	case triplist.ScopeAll:
		return s.backend.AllTrips(ctx, token)
	default:
		return nil, fmt.Errorf("unknown trip scope %q", scope)
	}
}

// Fetcher binds Fetch to one user for a view.
func (s *Source) Fetcher(token, userID string, scope triplist.Scope) triplist.Fetcher {
	return triplist.FetchFunc(func(ctx context.Context) (triplist.FetchResult, error) {
		return s.Fetch(ctx, token, userID, scope)
	})
}

// Forget drops the cached trips of one user and scope.
func (s *Source) Forget(scope triplist.Scope, userID string) {
	s.cache.Remove(CacheKey(scope, userID))
}

// Purge drops every cached result.
func (s *Source) Purge() {
	s.cache.Purge()
}
