package triplist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/cabtrips/internal/models"
)

var (
	ErrViewClosed        = errors.New("view closed")
	ErrStaleResponse     = errors.New("response superseded by a newer refresh")
	ErrActionNotAllowed  = errors.New("action not allowed for trip")
	ErrTripNotFound      = errors.New("trip not found")
	ErrInvalidSortKey    = errors.New("invalid sort key")
	ErrNoActionPerformer = errors.New("view has no action performer")
)

// FetchResult is one load of raw trip payloads.
type FetchResult struct {
	Records []map[string]any
	Stale   bool   // served from a fallback rather than the backend
	Message string // shown to the user alongside the list
}

// Fetcher loads the raw trips a view shows.
type Fetcher interface {
	Fetch(ctx context.Context) (FetchResult, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context) (FetchResult, error)

func (f FetchFunc) Fetch(ctx context.Context) (FetchResult, error) { return f(ctx) }

// Performer carries out a trip action against the backend.
type Performer interface {
	Perform(ctx context.Context, trip models.Trip, action Action, args ActionArgs) error
}

// PerformFunc adapts a function to Performer.
type PerformFunc func(ctx context.Context, trip models.Trip, action Action, args ActionArgs) error

func (f PerformFunc) Perform(ctx context.Context, trip models.Trip, action Action, args ActionArgs) error {
	return f(ctx, trip, action, args)
}

// Options configures a View.
type Options struct {
	PageSize    int
	SearchDelay time.Duration
	Clock       Clock
	Location    *time.Location
	Performer   Performer
	Logger      *log.Entry
}

// TripRow is a trip on the visible page with the actions it offers.
type TripRow struct {
	models.Trip
	Actions []Action `json:"actions"`
}

// Snapshot is everything needed to render a view.
type Snapshot struct {
	Role       models.Role           `json:"role"`
	Trips      []TripRow             `json:"trips"`
	Stats      models.AggregateStats `json:"stats"`
	Criteria   models.FilterCriteria `json:"criteria"`
	Sort       models.SortSpec       `json:"sort"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
	TotalItems int                   `json:"total_items"`
	Pager      []PageItem            `json:"pager"`
	Loading    bool                  `json:"loading"`
	Stale      bool                  `json:"stale"`
	Message    string                `json:"message,omitempty"`
	LoadedAt   *time.Time            `json:"loaded_at,omitempty"`
}

// View is the state behind one trip list screen. It is safe for concurrent
// use.
type View struct {
	mu         sync.Mutex
	profile    Profile
	fetcher    Fetcher
	performer  Performer
	normalizer *Normalizer
	clock      Clock
	logger     *log.Entry

	trips    []models.Trip
	criteria models.FilterCriteria
	sort     models.SortSpec
	pager    *Paginator
	filtered []models.Trip
	stats    models.AggregateStats

	loading  bool
	stale    bool
	message  string
	loadedAt time.Time
	closed   bool

	seq    Sequencer
	search *Debouncer
}

// NewView returns an empty view. Call Refresh to load trips.
func NewView(profile Profile, fetcher Fetcher, opts Options) *View {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	v := &View{
		profile:    profile,
		fetcher:    fetcher,
		performer:  opts.Performer,
		normalizer: profile.Normalizer(loc),
		clock:      clock,
		logger:     logger.WithField("role", profile.Role),
		sort:       models.DefaultSort,
		pager:      NewPaginator(opts.PageSize),
		filtered:   []models.Trip{},
	}
	v.search = NewDebouncer(opts.SearchDelay, "", v.applySearch)
	return v
}

// Profile returns the role profile the view was built with.
func (v *View) Profile() Profile {
	return v.profile
}

// Refresh fetches trips and replaces the list. A refresh started later wins:
// an earlier one still in flight is cancelled and its result discarded with
// ErrStaleResponse.
func (v *View) Refresh(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	ctx, ticket := v.seq.Next(ctx)
	v.loading = true
	v.mu.Unlock()

	res, err := v.fetcher.Fetch(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrViewClosed
	}
	if !v.seq.IsCurrent(ticket) {
		return ErrStaleResponse
	}
	v.seq.Done(ticket)
	v.loading = false

	if err != nil {
		v.message = fmt.Sprintf("Failed to load trips: %v", err)
		v.logger.WithError(err).Warn("Trip refresh failed")
		return fmt.Errorf("refresh trips: %w", err)
	}

	v.trips = v.normalizer.NormalizeAll(res.Records)
	v.stale = res.Stale
	v.message = res.Message
	v.loadedAt = v.clock()
	v.recompute()
	v.logger.WithFields(log.Fields{
		"trips": len(v.trips),
		"stale": res.Stale,
	}).Debug("Trips refreshed")
	return nil
}

// SetCriteria replaces every filter except the search term, which is owned
// by SetSearch, and returns to the first page.
func (v *View) SetCriteria(c models.FilterCriteria) error {
	if err := ValidateCriteria(c); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrViewClosed
	}
	c.Search = v.criteria.Search
	v.criteria = c
	v.recompute()
	v.pager.Reset()
	return nil
}

// SetSearch schedules a search term change. It takes effect after the
// search delay passes without another call, and only if the term changed.
func (v *View) SetSearch(term string) {
	v.search.Trigger(term)
}

// FlushSearch applies a pending search term immediately.
func (v *View) FlushSearch() {
	v.search.Flush()
}

func (v *View) applySearch(term string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.criteria.Search = term
	v.recompute()
	v.pager.Reset()
}

// ToggleSort selects key, flipping the direction when it is already active.
func (v *View) ToggleSort(key models.SortKey) (models.SortSpec, error) {
	if !key.IsValid() {
		return models.SortSpec{}, fmt.Errorf("%w: %q", ErrInvalidSortKey, key)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return models.SortSpec{}, ErrViewClosed
	}
	v.sort = v.sort.Toggle(key)
	v.recompute()
	return v.sort, nil
}

// SetPageSize changes the page size and returns to the first page.
func (v *View) SetPageSize(size int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pager.SetPageSize(size)
}

// Next moves to the next page and returns the current page.
func (v *View) Next() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pager.Next()
	return v.pager.Page()
}

// Prev moves to the previous page and returns the current page.
func (v *View) Prev() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pager.Prev()
	return v.pager.Page()
}

// Goto moves to page, clamped to the valid range, and returns the current page.
func (v *View) Goto(page int) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pager.Goto(page)
	return v.pager.Page()
}

// Snapshot returns the current page, stats and pager.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	page := Paginate(v.pager, v.filtered)
	rows := make([]TripRow, 0, len(page))
	for _, t := range page {
		rows = append(rows, TripRow{Trip: t, Actions: v.profile.Actions(t)})
	}
	snap := Snapshot{
		Role:       v.profile.Role,
		Trips:      rows,
		Stats:      v.stats,
		Criteria:   v.criteria,
		Sort:       v.sort,
		Page:       v.pager.Page(),
		PageSize:   v.pager.PageSize(),
		TotalPages: v.pager.TotalPages(),
		TotalItems: v.pager.TotalItems(),
		Pager:      v.pager.Window(),
		Loading:    v.loading,
		Stale:      v.stale,
		Message:    v.message,
	}
	if !v.loadedAt.IsZero() {
		at := v.loadedAt
		snap.LoadedAt = &at
	}
	return snap
}

// Filtered returns the whole filtered and sorted list, not just one page.
func (v *View) Filtered() []models.Trip {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.filtered)
}

// Stats returns the statistics of the filtered list.
func (v *View) Stats() models.AggregateStats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}

// Perform runs action on the trip with tripID through the backend and, once
// it succeeds, updates the local copy without waiting for a refresh.
func (v *View) Perform(ctx context.Context, tripID string, action Action, args ActionArgs) (models.Trip, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return models.Trip{}, ErrViewClosed
	}
	if v.performer == nil {
		v.mu.Unlock()
		return models.Trip{}, ErrNoActionPerformer
	}
	i := v.indexOf(tripID)
	if i < 0 {
		v.mu.Unlock()
		return models.Trip{}, fmt.Errorf("%w: %s", ErrTripNotFound, tripID)
	}
	trip := v.trips[i]
	v.mu.Unlock()

	if !v.profile.Allows(trip, action) {
		return trip, fmt.Errorf("%w: %s on %s trip", ErrActionNotAllowed, action, trip.Status)
	}
	if err := v.performer.Perform(ctx, trip, action, args); err != nil {
		return trip, fmt.Errorf("%s trip %s: %w", action, tripID, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return trip, ErrViewClosed
	}
	if i = v.indexOf(tripID); i < 0 {
		return trip, nil
	}
	v.trips[i] = Apply(v.trips[i], action, args, v.clock())
	v.recompute()
	v.logger.WithFields(log.Fields{
		"trip_id": tripID,
		"action":  action,
	}).Info("Trip action applied")
	return v.trips[i], nil
}

// ApplyRemoteStatus records a status change reported by the backend and
// reports whether the view holds the trip.
func (v *View) ApplyRemoteStatus(tripID string, status models.Status) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false
	}
	i := v.indexOf(tripID)
	if i < 0 || v.trips[i].Status == status {
		return i >= 0
	}
	v.trips[i] = WithStatus(v.trips[i], status, v.clock())
	v.recompute()
	return true
}

// Close cancels an in-flight refresh and pending search. Late results are
// ignored from then on.
func (v *View) Close() {
	v.mu.Lock()
	v.closed = true
	v.seq.Stop()
	v.mu.Unlock()
	v.search.Stop()
}

// Closed reports whether Close was called.
func (v *View) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

func (v *View) indexOf(id string) int {
	for i, t := range v.trips {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// recompute rebuilds the derived list and stats. Callers hold v.mu.
func (v *View) recompute() {
	v.filtered = Sort(Filter(v.trips, v.criteria, v.clock()), v.sort)
	v.stats = Aggregate(v.filtered)
	v.pager.SetTotal(len(v.filtered))
}
