package triplist

import (
	"time"

	"github.com/ukydev/cabtrips/internal/models"
)

// Action is something a user can do to a trip from a trip list.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionRate     Action = "rate"
	ActionRebook   Action = "rebook"
)

// ActionArgs carries the extra input some actions need.
type ActionArgs struct {
	Rating float64 `json:"rating,omitempty"`
}

// Scope says which trips a profile loads from the backend.
type Scope string

const (
	ScopeDriver   Scope = "driver"   // trips assigned to the signed-in driver
	ScopeCustomer Scope = "customer" // trips booked by the signed-in customer
	ScopeAll      Scope = "all"      // every trip, for admins
)

// ActionRule enables an action for trips matching Allowed.
type ActionRule struct {
	Action  Action
	Allowed func(models.Trip) bool
}

// Profile parameterizes the trip-list pipeline for one role.
type Profile struct {
	Role     models.Role
	Scope    Scope
	Mapping  FieldMapping
	Statuses StatusTable
	Rules    []ActionRule
}

func statusIn(statuses ...models.Status) func(models.Trip) bool {
	return func(t models.Trip) bool {
		for _, s := range statuses {
			if t.Status == s {
				return true
			}
		}
		return false
	}
}

func active(t models.Trip) bool {
	return !t.Status.IsTerminal() && t.Status != models.StatusUnknown
}

// DriverProfile is the driver trip history: accept, start, complete, cancel.
func DriverProfile() Profile {
	return Profile{
		Role:     models.RoleDriver,
		Scope:    ScopeDriver,
		Mapping:  DefaultMapping(),
		Statuses: DefaultStatusTable(),
		Rules: []ActionRule{
			{Action: ActionAccept, Allowed: statusIn(models.StatusRequested, models.StatusConfirmed)},
			{Action: ActionStart, Allowed: statusIn(models.StatusAccepted)},
			{Action: ActionComplete, Allowed: statusIn(models.StatusInProgress)},
			{Action: ActionCancel, Allowed: active},
		},
	}
}

// CustomerProfile is the customer trip history: cancel, rate, rebook.
func CustomerProfile() Profile {
	return Profile{
		Role:     models.RoleCustomer,
		Scope:    ScopeCustomer,
		Mapping:  DefaultMapping(),
		Statuses: DefaultStatusTable(),
		Rules: []ActionRule{
			{Action: ActionCancel, Allowed: statusIn(models.StatusRequested, models.StatusConfirmed, models.StatusAccepted)},
			{Action: ActionRate, Allowed: func(t models.Trip) bool {
				return t.Status == models.StatusCompleted && !t.IsRated()
			}},
			{Action: ActionRebook, Allowed: statusIn(models.StatusCompleted, models.StatusCancelled)},
		},
	}
}

// AdminProfile is the admin trip lookup over all trips.
func AdminProfile() Profile {
	return Profile{
		Role:     models.RoleAdmin,
		Scope:    ScopeAll,
		Mapping:  DefaultMapping(),
		Statuses: DefaultStatusTable(),
		Rules: []ActionRule{
			{Action: ActionCancel, Allowed: active},
		},
	}
}

// ProfileFor returns the built-in profile for role.
func ProfileFor(role models.Role) (Profile, bool) {
	switch role {
	case models.RoleDriver:
		return DriverProfile(), true
	case models.RoleCustomer:
		return CustomerProfile(), true
	case models.RoleAdmin:
		return AdminProfile(), true
	default:
		return Profile{}, false
	}
}

// Normalizer builds a normalizer using the profile's mapping and status table.
func (p Profile) Normalizer(loc *time.Location) *Normalizer {
	return &Normalizer{Mapping: p.Mapping, Statuses: p.Statuses, Location: loc}
}

// Actions lists the actions available on t, in rule order.
func (p Profile) Actions(t models.Trip) []Action {
	out := []Action{}
	for _, r := range p.Rules {
		if r.Allowed(t) {
			out = append(out, r.Action)
		}
	}
	return out
}

// Allows reports whether action may be performed on t.
func (p Profile) Allows(t models.Trip, action Action) bool {
	for _, r := range p.Rules {
		if r.Action == action {
			return r.Allowed(t)
		}
	}
	return false
}

// Apply returns t as it looks after action succeeded on the backend.
// Rebooking creates a new trip, so the original is returned unchanged.
func Apply(t models.Trip, action Action, args ActionArgs, now time.Time) models.Trip {
	switch action {
	case ActionAccept:
		t.Status = models.StatusAccepted
	case ActionStart:
		t.Status = models.StatusInProgress
		if t.StartTime.IsZero() {
			t.StartTime = now
		}
	case ActionComplete:
		t.Status = models.StatusCompleted
		t = closeTrip(t, now)
	case ActionCancel:
		t.Status = models.StatusCancelled
	case ActionRate:
		t.Rating = clampRating(args.Rating)
	}
	return t
}

// WithStatus returns t moved to status, keeping the trip invariants.
func WithStatus(t models.Trip, status models.Status, now time.Time) models.Trip {
	t.Status = status
	if status == models.StatusCompleted {
		t = closeTrip(t, now)
	}
	return t
}

func closeTrip(t models.Trip, now time.Time) models.Trip {
	if t.EndTime != nil {
		return t
	}
	end := now
	if end.Before(t.StartTime) {
		end = t.StartTime
	}
	t.EndTime = &end
	if !t.StartTime.IsZero() {
		t.DurationMin = end.Sub(t.StartTime).Minutes()
	}
	return t
}
