// Package triplist turns backend trip payloads into the filtered, sorted,
// paginated and summarized lists shown by the driver, customer and admin
// trip views.
package triplist

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ukydev/cabtrips/internal/models"
)

// FieldMapping lists, per canonical field, the payload keys to try in order.
// Keys may be dotted paths into nested objects ("customer.customerName").
type FieldMapping struct {
	ID         []string
	Passenger  []string
	DriverID   []string
	CustomerID []string
	CabID      []string

	PickupLine  []string
	PickupLat   []string
	PickupLng   []string
	PickupCity  []string
	PickupState []string

	DropLine  []string
	DropLat   []string
	DropLng   []string
	DropCity  []string
	DropState []string

	Start    []string
	End      []string
	Distance []string
	Fare     []string
	Tip      []string
	Status   []string
	Payment  []string
	Rating   []string
}

// DefaultMapping covers the backend booking shape and the variants the
// admin and customer screens receive.
func DefaultMapping() FieldMapping {
	return FieldMapping{
		ID:         []string{"tripBookingId", "tripId", "id", "_id"},
		Passenger:  []string{"customer.customerName", "customerName", "passengerName", "customer.name", "passenger"},
		DriverID:   []string{"driverId", "driver.driverId", "driver.id"},
		CustomerID: []string{"customer.customerId", "customerId", "customer.id"},
		CabID:      []string{"cabId", "cab.cabId", "cab.id"},

		PickupLine:  []string{"fromLocation", "pickupLocation.address", "pickupAddress", "pickup"},
		PickupLat:   []string{"fromLatitude", "pickupLocation.lat", "pickupLat"},
		PickupLng:   []string{"fromLongitude", "pickupLocation.lng", "pickupLng"},
		PickupCity:  []string{"fromCity", "pickupLocation.city"},
		PickupState: []string{"fromState", "pickupLocation.state"},

		DropLine:  []string{"toLocation", "dropLocation.address", "dropAddress", "drop"},
		DropLat:   []string{"toLatitude", "dropLocation.lat", "dropLat"},
		DropLng:   []string{"toLongitude", "dropLocation.lng", "dropLng"},
		DropCity:  []string{"toCity", "dropLocation.city"},
		DropState: []string{"toState", "dropLocation.state"},

		Start:    []string{"fromDateTime", "startTime", "pickupTime", "createdAt"},
		End:      []string{"toDateTime", "endTime", "dropTime"},
		Distance: []string{"distanceinKm", "distanceInKm", "distance"},
		Fare:     []string{"bill", "fare", "totalFare", "amount"},
		Tip:      []string{"tip", "tipAmount"},
		Status:   []string{"status", "tripStatus"},
		Payment:  []string{"paymentMode", "paymentMethod", "payment"},
		Rating:   []string{"rating", "customerRating", "driverRating"},
	}
}

// StatusTable maps lower-cased backend status strings to a Status.
type StatusTable struct {
	Aliases  map[string]models.Status
	Fallback models.Status // used for strings missing from Aliases
}

// DefaultStatusTable maps unrecognized strings to StatusUnknown.
func DefaultStatusTable() StatusTable {
	aliases := map[string]models.Status{
		"pending":     models.StatusRequested,
		"booked":      models.StatusConfirmed,
		"in_progress": models.StatusInProgress,
		"inprogress":  models.StatusInProgress,
		"ongoing":     models.StatusInProgress,
		"started":     models.StatusInProgress,
		"done":        models.StatusCompleted,
		"finished":    models.StatusCompleted,
		"canceled":    models.StatusCancelled,
	}
	for _, s := range models.Statuses {
		aliases[string(s)] = s
	}
	return StatusTable{Aliases: aliases, Fallback: models.StatusUnknown}
}

// LegacyStatusTable reproduces the older screens, which treated any
// unrecognized status as completed.
func LegacyStatusTable() StatusTable {
	t := DefaultStatusTable()
	t.Fallback = models.StatusCompleted
	return t
}

// Map resolves raw to a Status.
func (t StatusTable) Map(raw string) models.Status {
	key := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := t.Aliases[key]; ok {
		return s
	}
	if t.Fallback == "" {
		return models.StatusUnknown
	}
	return t.Fallback
}

var paymentAliases = map[string]models.PaymentMethod{
	"cash":        models.PaymentCash,
	"card":        models.PaymentCard,
	"credit_card": models.PaymentCard,
	"debit_card":  models.PaymentCard,
	"credit card": models.PaymentCard,
	"debit card":  models.PaymentCard,
	"upi":         models.PaymentUPI,
	"wallet":      models.PaymentWallet,
	"paytm":       models.PaymentWallet,
}

// ParsePayment maps a backend payment string to a PaymentMethod.
func ParsePayment(raw string) models.PaymentMethod {
	if p, ok := paymentAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return p
	}
	return models.PaymentUnknown
}

// UnknownPassenger is shown when a payload carries no passenger name.
const UnknownPassenger = "Unknown"

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Normalizer maps raw backend records into canonical trips. It never fails:
// missing or malformed values become safe defaults.
type Normalizer struct {
	Mapping  FieldMapping
	Statuses StatusTable
	Location *time.Location // zone for timestamps without an offset
}

// NewNormalizer returns a Normalizer with the default mapping and status table.
func NewNormalizer() *Normalizer {
	return &Normalizer{Mapping: DefaultMapping(), Statuses: DefaultStatusTable(), Location: time.Local}
}

// Normalize converts one raw record.
func (n *Normalizer) Normalize(raw map[string]any) models.Trip {
	m := n.Mapping
	trip := models.Trip{
		ID:         asString(lookup(raw, m.ID)),
		Passenger:  strings.TrimSpace(asString(lookup(raw, m.Passenger))),
		DriverID:   asString(lookup(raw, m.DriverID)),
		CustomerID: asString(lookup(raw, m.CustomerID)),
		CabID:      asString(lookup(raw, m.CabID)),
		Pickup: models.Address{
			Line:  asString(lookup(raw, m.PickupLine)),
			Lat:   asOptionalFloat(lookup(raw, m.PickupLat)),
			Lng:   asOptionalFloat(lookup(raw, m.PickupLng)),
			City:  asString(lookup(raw, m.PickupCity)),
			State: asString(lookup(raw, m.PickupState)),
		},
		Drop: models.Address{
			Line:  asString(lookup(raw, m.DropLine)),
			Lat:   asOptionalFloat(lookup(raw, m.DropLat)),
			Lng:   asOptionalFloat(lookup(raw, m.DropLng)),
			City:  asString(lookup(raw, m.DropCity)),
			State: asString(lookup(raw, m.DropState)),
		},
		DistanceKm:    asFloat(lookup(raw, m.Distance)),
		Fare:          asFloat(lookup(raw, m.Fare)),
		Tip:           asFloat(lookup(raw, m.Tip)),
		Status:        n.Statuses.Map(asString(lookup(raw, m.Status))),
		PaymentMethod: ParsePayment(asString(lookup(raw, m.Payment))),
		Rating:        clampRating(asFloat(lookup(raw, m.Rating))),
	}
	if trip.Passenger == "" {
		trip.Passenger = UnknownPassenger
	}

	loc := n.Location
	if loc == nil {
		loc = time.Local
	}
	start, startOK := asTime(lookup(raw, m.Start), loc)
	end, endOK := asTime(lookup(raw, m.End), loc)
	if startOK {
		trip.StartTime = start
	}
	if endOK && (!startOK || !end.Before(start)) {
		trip.EndTime = &end
	}
	if trip.Status == models.StatusCompleted && trip.EndTime == nil {
		e := trip.StartTime
		trip.EndTime = &e
	}
	if startOK && trip.EndTime != nil {
		trip.DurationMin = trip.EndTime.Sub(start).Minutes()
	}
	return trip
}

// NormalizeAll converts records keeping their order.
func (n *Normalizer) NormalizeAll(raws []map[string]any) []models.Trip {
	out := make([]models.Trip, 0, len(raws))
	for _, r := range raws {
		out = append(out, n.Normalize(r))
	}
	return out
}

func lookup(raw map[string]any, paths []string) any {
	for _, p := range paths {
		if v, ok := lookupPath(raw, p); ok && v != nil {
			return v
		}
	}
	return nil
}

func lookupPath(raw map[string]any, path string) (any, bool) {
	var cur any = raw
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func asFloat(v any) float64 {
	f, ok := toFloat(v)
	if !ok {
		return 0
	}
	return f
}

func asOptionalFloat(v any) *float64 {
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func asTime(v any, loc *time.Location) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil || x.IsZero() {
			return time.Time{}, false
		}
		return *x, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			var (
				t   time.Time
				err error
			)
			if layout == time.RFC3339Nano {
				t, err = time.Parse(layout, s)
			} else {
				t, err = time.ParseInLocation(layout, s, loc)
			}
			if err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		f, ok := toFloat(v)
		if !ok || f <= 0 {
			return time.Time{}, false
		}
		// epoch milliseconds when large enough, otherwise seconds
		if f > 1e12 {
			return time.UnixMilli(int64(f)).In(loc), true
		}
		return time.Unix(int64(f), 0).In(loc), true
	}
}

func clampRating(r float64) float64 {
	switch {
	case r < 1:
		return 0
	case r > 5:
		return 5
	default:
		return r
	}
}
