package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/cabtrips/internal/events"
	"github.com/ukydev/cabtrips/internal/models"
	"github.com/ukydev/cabtrips/internal/session"
	"github.com/ukydev/cabtrips/internal/triplist"
)

var (
	ErrUnknownRole   = errors.New("unknown role")
	ErrOwnerRequired = errors.New("user query parameter is required")
	ErrForbiddenView = errors.New("role may not open this view")
)

// TripSource loads the raw trips of one user and scope.
type TripSource interface {
	Fetch(ctx context.Context, token, userID string, scope triplist.Scope) (triplist.FetchResult, error)
	Fetcher(token, userID string, scope triplist.Scope) triplist.Fetcher
	Purge()
}

// ActionBackend is the part of the backend trip actions go through.
type ActionBackend interface {
	UpdateTripStatus(ctx context.Context, token, tripID, action string) (*models.StatusUpdate, error)
	RateTrip(ctx context.Context, token, tripID string, rating float64) error
	BookTrip(ctx context.Context, token string, req models.BookRequest) (map[string]any, error)
}

// ViewOptions configures every view a registry opens.
type ViewOptions struct {
	PageSize    int
	SearchDelay time.Duration
	Clock       triplist.Clock
	Location    *time.Location
	Logger      *log.Entry

	// LegacyStatuses maps unrecognized backend statuses to completed
	// instead of unknown.
	LegacyStatuses bool
}

// Profile returns the profile of role's view under these options.
func (o ViewOptions) Profile(role models.Role) (triplist.Profile, bool) {
	p, ok := triplist.ProfileFor(role)
	if ok && o.LegacyStatuses {
		p.Statuses = triplist.LegacyStatusTable()
	}
	return p, ok
}

// ViewRegistry holds the open views of every session.
type ViewRegistry struct {
	mu      sync.Mutex
	views   map[string]map[string]*triplist.View // session id, then view key
	source  TripSource
	backend ActionBackend
	opts    ViewOptions
}

// NewViewRegistry returns an empty registry.
func NewViewRegistry(source TripSource, backend ActionBackend, opts ViewOptions) *ViewRegistry {
	if opts.Logger == nil {
		opts.Logger = log.NewEntry(log.StandardLogger())
	}
	return &ViewRegistry{
		views:   make(map[string]map[string]*triplist.View),
		source:  source,
		backend: backend,
		opts:    opts,
	}
}

// ViewOwner resolves whose trips a session sees in role's view. Drivers and
// customers only see their own; admins see any user's, named by owner, and
// every trip in the admin view.
func ViewOwner(s *session.Session, role models.Role, owner string) (string, error) {
	if _, ok := triplist.ProfileFor(role); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if s.Role != models.RoleAdmin {
		if role != s.Role {
			return "", ErrForbiddenView
		}
		return s.UserID, nil
	}
	if role == models.RoleAdmin {
		return s.UserID, nil
	}
	if owner == "" {
		return "", ErrOwnerRequired
	}
	return owner, nil
}

// Open returns the session's view for role and owner, creating it when
// needed. created reports whether the view is new and still empty.
func (r *ViewRegistry) Open(s *session.Session, role models.Role, owner string) (v *triplist.View, created bool, err error) {
	profile, ok := r.opts.Profile(role)
	if !ok {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	key := string(role) + ":" + owner

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.views[s.ID][key]; ok && !v.Closed() {
		return v, false, nil
	}
	v = triplist.NewView(profile, r.source.Fetcher(s.Token, owner, profile.Scope), triplist.Options{
		PageSize:    r.opts.PageSize,
		SearchDelay: r.opts.SearchDelay,
		Clock:       r.opts.Clock,
		Location:    r.opts.Location,
		Performer:   r.performer(s.Token),
		Logger:      r.opts.Logger.WithField("session", s.ID),
	})
	if r.views[s.ID] == nil {
		r.views[s.ID] = make(map[string]*triplist.View)
	}
	r.views[s.ID][key] = v
	return v, true, nil
}

// Lookup returns an open view without creating one.
func (r *ViewRegistry) Lookup(sessionID string, role models.Role, owner string) (*triplist.View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[sessionID][string(role)+":"+owner]
	return v, ok
}

// CloseView closes one view of a session.
func (r *ViewRegistry) CloseView(sessionID string, role models.Role, owner string) bool {
	key := string(role) + ":" + owner
	r.mu.Lock()
	v, ok := r.views[sessionID][key]
	delete(r.views[sessionID], key)
	r.mu.Unlock()
	if ok {
		v.Close()
	}
	return ok
}

// CloseSession closes every view of a session and returns how many there were.
func (r *ViewRegistry) CloseSession(sessionID string) int {
	r.mu.Lock()
	views := r.views[sessionID]
	delete(r.views, sessionID)
	r.mu.Unlock()
	for _, v := range views {
		v.Close()
	}
	return len(views)
}

// Close closes every view.
func (r *ViewRegistry) Close() {
	r.mu.Lock()
	all := r.views
	r.views = make(map[string]map[string]*triplist.View)
	r.mu.Unlock()
	for _, views := range all {
		for _, v := range views {
			v.Close()
		}
	}
}

// Count returns the number of open views.
func (r *ViewRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, views := range r.views {
		n += len(views)
	}
	return n
}

// ApplyStatus applies a status event to every open view holding the trip
// and drops cached trip lists. It returns the number of views updated.
func (r *ViewRegistry) ApplyStatus(ev events.StatusEvent) int {
	r.source.Purge()

	r.mu.Lock()
	var all []*triplist.View
	for _, views := range r.views {
		for _, v := range views {
			all = append(all, v)
		}
	}
	r.mu.Unlock()

	updated := 0
	for _, v := range all {
		status := v.Profile().Statuses.Map(ev.Status)
		if v.ApplyRemoteStatus(ev.TripID, status) {
			updated++
		}
	}
	r.opts.Logger.WithFields(log.Fields{
		"trip_id": ev.TripID,
		"status":  ev.Status,
		"views":   updated,
	}).Debug("Trip status event applied")
	return updated
}

func (r *ViewRegistry) performer(token string) triplist.Performer {
	return triplist.PerformFunc(func(ctx context.Context, trip models.Trip, action triplist.Action, args triplist.ActionArgs) error {
		switch action {
		case triplist.ActionAccept, triplist.ActionStart, triplist.ActionComplete, triplist.ActionCancel:
			_, err := r.backend.UpdateTripStatus(ctx, token, trip.ID, string(action))
			return err
		case triplist.ActionRate:
			return r.backend.RateTrip(ctx, token, trip.ID, args.Rating)
		case triplist.ActionRebook:
			_, err := r.backend.BookTrip(ctx, token, RebookRequest(trip))
			return err
		default:
			return fmt.Errorf("unsupported action %q", action)
		}
	})
}

// RebookRequest books the same route again for the same passenger.
func RebookRequest(t models.Trip) models.BookRequest {
	return models.BookRequest{
		CustomerID:    t.CustomerID,
		CustomerName:  t.Passenger,
		FromLocation:  t.Pickup.Line,
		ToLocation:    t.Drop.Line,
		FromCity:      t.Pickup.City,
		ToCity:        t.Drop.City,
		FromLatitude:  t.Pickup.Lat,
		FromLongitude: t.Pickup.Lng,
		ToLatitude:    t.Drop.Lat,
		ToLongitude:   t.Drop.Lng,
		DistanceInKm:  t.DistanceKm,
		PaymentMode:   string(t.PaymentMethod),
	}
}
