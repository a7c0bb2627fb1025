package devbackend

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ukydev/cabtrips/internal/db"
	"github.com/ukydev/cabtrips/internal/events"
	"github.com/ukydev/cabtrips/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memUsers is an in-memory db.UserCollection.
type memUsers struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[primitive.ObjectID]models.User)}
}

func (m *memUsers) InsertUser(ctx context.Context, user models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username || (user.Email != "" && u.Email == user.Email) {
			return nil, db.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	user.IsActive = true
	m.users[user.ID] = user
	return &user, nil
}

func (m *memUsers) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, db.ErrNotFound
	}
	u, ok := m.users[oid]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memUsers) UpdateLastLogin(ctx context.Context, id string) error {
	return m.update(id, func(u *models.User) {
		now := time.Now()
		u.LastLogin = &now
	})
}

func (m *memUsers) SetVerified(ctx context.Context, id string, verified bool) error {
	return m.update(id, func(u *models.User) { u.Verified = verified })
}

func (m *memUsers) update(id string, fn func(*models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return db.ErrNotFound
	}
	u, ok := m.users[oid]
	if !ok {
		return db.ErrNotFound
	}
	fn(&u)
	m.users[oid] = u
	return nil
}

// memBookings is an in-memory db.BookingCollection.
type memBookings struct {
	mu       sync.Mutex
	bookings []models.Booking
}

func (m *memBookings) InsertBooking(ctx context.Context, b models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.bookings {
		if x.TripBookingID == b.TripBookingID {
			return db.ErrDuplicate
		}
	}
	m.bookings = append(m.bookings, b)
	return nil
}

func (m *memBookings) find(id string) int {
	for i, b := range m.bookings {
		if b.TripBookingID == id {
			return i
		}
	}
	return -1
}

func (m *memBookings) FindBooking(ctx context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(id)
	if i < 0 {
		return nil, db.ErrNotFound
	}
	b := m.bookings[i]
	return &b, nil
}

func (m *memBookings) FindBookings(ctx context.Context, f db.BookingFilter) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		switch {
		case f.DriverID != "" && b.DriverID != f.DriverID:
		case f.CustomerID != "" && b.Customer.CustomerID != f.CustomerID:
		case f.From != nil && (b.FromDateTime == nil || b.FromDateTime.Before(*f.From)):
		case f.To != nil && (b.FromDateTime == nil || !b.FromDateTime.Before(*f.To)):
		case len(f.Statuses) > 0 && !slices.Contains(f.Statuses, b.Status):
		default:
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBookings) TransitionStatus(ctx context.Context, id string, from []string, to string, set map[string]any) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(id)
	if i < 0 {
		return nil, db.ErrNotFound
	}
	b := m.bookings[i]
	if !slices.Contains(from, b.Status) {
		if b.Status == to {
			return &b, nil
		}
		return &b, db.ErrConflict
	}
	b.Status = to
	for k, v := range set {
		switch k {
		case "driver_id":
			b.DriverID = v.(string)
		case "from_date_time":
			t := v.(time.Time)
			b.FromDateTime = &t
		case "to_date_time":
			t := v.(time.Time)
			b.ToDateTime = &t
		}
	}
	m.bookings[i] = b
	return &b, nil
}

func (m *memBookings) SetRating(ctx context.Context, id string, rating float64) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(id)
	if i < 0 {
		return nil, db.ErrNotFound
	}
	if m.bookings[i].Status != models.BookingCompleted {
		return nil, db.ErrConflict
	}
	m.bookings[i].Rating = rating
	b := m.bookings[i]
	return &b, nil
}

// memCabs is an in-memory db.CabCollection.
type memCabs struct {
	mu   sync.Mutex
	cabs map[primitive.ObjectID]models.Cab
}

func newMemCabs() *memCabs {
	return &memCabs{cabs: make(map[primitive.ObjectID]models.Cab)}
}

func (m *memCabs) InsertCab(ctx context.Context, cab models.Cab) (*models.Cab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cab.ID = primitive.NewObjectID()
	m.cabs[cab.ID] = cab
	return &cab, nil
}

func (m *memCabs) FindCabByID(ctx context.Context, id string) (*models.Cab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, db.ErrNotFound
	}
	cab, ok := m.cabs[oid]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &cab, nil
}

func (m *memCabs) FindCabByDriver(ctx context.Context, driverID string) (*models.Cab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cab := range m.cabs {
		if cab.DriverID == driverID {
			return &cab, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memCabs) modify(id string, fn func(*models.Cab)) (*models.Cab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, db.ErrNotFound
	}
	cab, ok := m.cabs[oid]
	if !ok {
		return nil, db.ErrNotFound
	}
	fn(&cab)
	m.cabs[oid] = cab
	return &cab, nil
}

func (m *memCabs) UpdateCab(ctx context.Context, id string, u models.CabUpdate) (*models.Cab, error) {
	return m.modify(id, func(c *models.Cab) {
		c.CarType, c.Make, c.Model, c.Plate, c.Year, c.PerKmRate = u.CarType, u.Make, u.Model, u.Plate, u.Year, u.PerKmRate
	})
}

func (m *memCabs) AddImage(ctx context.Context, id, name string) (*models.Cab, error) {
	return m.modify(id, func(c *models.Cab) {
		if !slices.Contains(c.Images, name) {
			c.Images = append(c.Images, name)
		}
	})
}

func (m *memCabs) RemoveImage(ctx context.Context, id, name string) (*models.Cab, error) {
	return m.modify(id, func(c *models.Cab) {
		c.Images = slices.DeleteFunc(c.Images, func(s string) bool { return s == name })
	})
}

// memVerifications is an in-memory db.VerificationCollection.
type memVerifications struct {
	mu    sync.Mutex
	items []models.Verification
}

func (m *memVerifications) InsertVerification(ctx context.Context, v models.Verification) (*models.Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = primitive.NewObjectID()
	m.items = append(m.items, v)
	return &v, nil
}

func (m *memVerifications) FindPending(ctx context.Context) ([]models.Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Verification
	for _, v := range m.items {
		if v.State == models.VerificationPending {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memVerifications) Review(ctx context.Context, id string, state models.VerificationState, note, reviewer string) (*models.Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, v := range m.items {
		if v.ID.Hex() != id {
			continue
		}
		if v.State != models.VerificationPending {
			return nil, db.ErrConflict
		}
		m.items[i].State, m.items[i].Note, m.items[i].ReviewedBy = state, note, reviewer
		out := m.items[i]
		return &out, nil
	}
	return nil, db.ErrNotFound
}

// recordingBus keeps published events.
type recordingBus struct {
	mu     sync.Mutex
	events []events.StatusEvent
}

func (b *recordingBus) PublishStatus(ctx context.Context, ev events.StatusEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *recordingBus) SubscribeStatus(events.Handler) error { return nil }
func (b *recordingBus) Close()                               {}

func (b *recordingBus) statuses() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, ev := range b.events {
		out = append(out, ev.Status)
	}
	return out
}
