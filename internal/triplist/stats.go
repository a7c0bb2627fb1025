package triplist

import "github.com/ukydev/cabtrips/internal/models"

// Aggregate computes the summary of a filtered trip set in one pass.
// Earnings, distance, tips, duration and average fare cover completed trips
// only; the average rating covers completed trips that were rated.
func Aggregate(trips []models.Trip) models.AggregateStats {
	stats := models.AggregateStats{TotalTrips: len(trips)}

	var fareSum, ratingSum float64
	var rated int
	for _, t := range trips {
		switch t.Status {
		case models.StatusCompleted:
			stats.CompletedTrips++
			stats.TotalEarnings += t.Earnings()
			stats.TotalDistance += t.DistanceKm
			stats.TotalTips += t.Tip
			stats.TotalDuration += t.DurationMin
			fareSum += t.Fare
			if t.IsRated() {
				ratingSum += t.Rating
				rated++
			}
		case models.StatusCancelled:
			stats.CancelledTrips++
		}
	}

	if rated > 0 {
		stats.AvgRating = ratingSum / float64(rated)
	}
	if stats.CompletedTrips > 0 {
		stats.AvgFare = fareSum / float64(stats.CompletedTrips)
	}
	return stats
}
