// Package mockdata generates plausible cab bookings across Indian cities for
// seeding the development backend and for offline trip lists.
package mockdata

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/ukydev/cabtrips/internal/models"
)

// City is a service area with well-known pickup and drop points.
type City struct {
	Name     string
	State    string
	Center   models.Location
	Landmark []string
}

// Cities for realistic routes
var Cities = []City{
	{"Mumbai", "Maharashtra", models.Location{Lat: 19.0760, Lon: 72.8777}, []string{
		"Mumbai Domestic Airport Terminal 1", "Chhatrapati Shivaji Maharaj Terminus", "Bandra Kurla Complex",
		"Andheri East Metro Station", "Powai Lake", "Gateway of India", "Lower Parel",
	}},
	{"Pune", "Maharashtra", models.Location{Lat: 18.5204, Lon: 73.8567}, []string{
		"Pune Airport", "Koregaon Park", "Hinjewadi Phase 1", "Shivajinagar", "Pune Railway Station",
	}},
	{"Bengaluru", "Karnataka", models.Location{Lat: 12.9716, Lon: 77.5946}, []string{
		"Kempegowda International Airport", "MG Road", "Whitefield", "Electronic City", "Indiranagar",
	}},
	{"Delhi", "Delhi", models.Location{Lat: 28.6139, Lon: 77.2090}, []string{
		"Indira Gandhi International Airport T3", "Connaught Place", "New Delhi Railway Station", "Saket", "Karol Bagh",
	}},
	{"Hyderabad", "Telangana", models.Location{Lat: 17.3850, Lon: 78.4867}, []string{
		"Rajiv Gandhi International Airport", "HITEC City", "Charminar", "Banjara Hills", "Secunderabad Station",
	}},
	{"Chennai", "Tamil Nadu", models.Location{Lat: 13.0827, Lon: 80.2707}, []string{
		"Chennai International Airport", "T. Nagar", "Marina Beach", "Chennai Central", "OMR Tidel Park",
	}},
}

var passengers = []string{
	"Aarav Sharma", "Diya Patel", "Vihaan Reddy", "Ananya Iyer", "Kabir Singh",
	"Ishita Nair", "Arjun Mehta", "Saanvi Joshi", "Rohan Gupta", "Meera Kulkarni",
}

var paymentModes = []string{"cash", "card", "upi", "wallet"}

// Options pins who a generated booking belongs to. Empty fields are filled
// in randomly.
type Options struct {
	DriverID     string
	CabID        string
	CustomerID   string
	CustomerName string
}

// Generator produces random bookings. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
	seq int
}

// NewGenerator returns a generator; the same seed yields the same bookings
// for the same clock.
func NewGenerator(seed int64, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{rng: rand.New(rand.NewSource(seed)), now: now}
}

func (g *Generator) jitter(base models.Location, meters float64) models.Location {
	latMetersPerDeg := 111320.0
	lonMetersPerDeg := 111320.0 * math.Cos(base.Lat*math.Pi/180)
	dLat := (g.rng.Float64()*2 - 1) * (meters / latMetersPerDeg)
	dLon := (g.rng.Float64()*2 - 1) * (meters / lonMetersPerDeg)
	return models.Location{Lat: base.Lat + dLat, Lon: base.Lon + dLon}
}

func (g *Generator) pick(xs []string) string {
	return xs[g.rng.Intn(len(xs))]
}

func (g *Generator) status() string {
	switch n := g.rng.Intn(100); {
	case n < 60:
		return models.BookingCompleted
	case n < 75:
		return models.BookingCancelled
	case n < 82:
		return models.BookingRequested
	case n < 88:
		return models.BookingConfirmed
	case n < 94:
		return models.BookingAccepted
	default:
		return models.BookingInProgress
	}
}

// Booking returns one random booking within the last 30 days.
func (g *Generator) Booking(opts Options) models.Booking {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.booking(opts)
}

// Bookings returns n random bookings.
func (g *Generator) Bookings(n int, opts Options) []models.Booking {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.Booking, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.booking(opts))
	}
	return out
}

func (g *Generator) booking(opts Options) models.Booking {
	g.seq++
	city := Cities[g.rng.Intn(len(Cities))]
	from := g.pick(city.Landmark)
	to := g.pick(city.Landmark)
	for to == from {
		to = g.pick(city.Landmark)
	}
	pickup := g.jitter(city.Center, 8000)
	drop := g.jitter(city.Center, 8000)

	// road distance runs longer than the straight line
	distance := math.Round(pickup.DistanceKm(drop)*1.3*10) / 10
	if distance < 1 {
		distance = 1
	}
	perKm := 12 + float64(g.rng.Intn(9))
	now := g.now()
	start := now.Add(-time.Duration(g.rng.Int63n(int64(30 * 24 * time.Hour)))).Truncate(time.Minute)
	status := g.status()

	b := models.Booking{
		TripBookingID: fmt.Sprintf("TB%05d", g.seq),
		Customer: models.BookingCustomer{
			CustomerID:   opts.CustomerID,
			CustomerName: opts.CustomerName,
		},
		DriverID:      opts.DriverID,
		CabID:         opts.CabID,
		FromLocation:  from,
		ToLocation:    to,
		FromCity:      city.Name,
		ToCity:        city.Name,
		FromState:     city.State,
		ToState:       city.State,
		FromLatitude:  &pickup.Lat,
		FromLongitude: &pickup.Lon,
		ToLatitude:    &drop.Lat,
		ToLongitude:   &drop.Lon,
		FromDateTime:  &start,
		DistanceInKm:  distance,
		Bill:          math.Round(50 + perKm*distance),
		Status:        status,
		PaymentMode:   g.pick(paymentModes),
		CreatedAt:     start,
		UpdatedAt:     start,
	}
	if b.Customer.CustomerName == "" {
		b.Customer.CustomerName = g.pick(passengers)
	}
	if b.Customer.CustomerID == "" {
		b.Customer.CustomerID = fmt.Sprintf("C%03d", g.rng.Intn(1000))
	}
	if b.DriverID == "" && status != models.BookingRequested {
		b.DriverID = fmt.Sprintf("D%03d", g.rng.Intn(100))
	}

	if status == models.BookingCompleted {
		// city traffic averages about 25 km/h
		minutes := distance / 25 * 60
		end := start.Add(time.Duration(minutes * float64(time.Minute))).Truncate(time.Minute)
		b.ToDateTime = &end
		b.UpdatedAt = end
		b.Tip = []float64{0, 0, 10, 20, 50}[g.rng.Intn(5)]
		if g.rng.Intn(10) < 7 {
			b.Rating = float64(3 + g.rng.Intn(3))
		}
	}
	return b
}

// BookRequest returns a random booking request for a customer, as the
// seeder submits it.
func (g *Generator) BookRequest(customerID, customerName string) models.BookRequest {
	b := g.Booking(Options{CustomerID: customerID, CustomerName: customerName})
	return models.BookRequest{
		CustomerID:    b.Customer.CustomerID,
		CustomerName:  b.Customer.CustomerName,
		FromLocation:  b.FromLocation,
		ToLocation:    b.ToLocation,
		FromCity:      b.FromCity,
		ToCity:        b.ToCity,
		FromLatitude:  b.FromLatitude,
		FromLongitude: b.FromLongitude,
		ToLatitude:    b.ToLatitude,
		ToLongitude:   b.ToLongitude,
		DistanceInKm:  b.DistanceInKm,
		PaymentMode:   b.PaymentMode,
	}
}

// Raw converts bookings to the decoded-JSON form the backend returns.
func Raw(bookings []models.Booking) ([]map[string]any, error) {
	data, err := json.Marshal(bookings)
	if err != nil {
		return nil, fmt.Errorf("marshal bookings: %w", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal bookings: %w", err)
	}
	if out == nil {
		out = []map[string]any{}
	}
	return out, nil
}
