package triplist

import (
	"fmt"
	"time"

	"github.com/ukydev/cabtrips/internal/models"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func trip(id string, status models.Status, fare, tip float64) models.Trip {
	return models.Trip{
		ID:            id,
		Passenger:     "Passenger " + id,
		Pickup:        models.Address{Line: "Pickup " + id},
		Drop:          models.Address{Line: "Drop " + id},
		StartTime:     testNow.Add(-time.Hour),
		Fare:          fare,
		Tip:           tip,
		Status:        status,
		PaymentMethod: models.PaymentCash,
	}
}

// rawTrips builds n backend payloads with distinct fares and start times.
func rawTrips(n int) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		start := testNow.Add(-time.Duration(i) * time.Hour)
		out = append(out, map[string]any{
			"tripBookingId": float64(i),
			"customer":      map[string]any{"customerName": fmt.Sprintf("Rider %02d", i)},
			"fromLocation":  "Andheri East",
			"toLocation":    "Mumbai Domestic Airport Terminal 1",
			"fromDateTime":  start.Format(time.RFC3339),
			"toDateTime":    start.Add(30 * time.Minute).Format(time.RFC3339),
			"distanceinKm":  float64(i),
			"bill":          float64(100 + i),
			"status":        "REQUESTED",
			"paymentMode":   "cash",
		})
	}
	return out
}
