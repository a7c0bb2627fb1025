package models

// AggregateStats summarizes a filtered trip set.
type AggregateStats struct {
	TotalTrips     int     `json:"total_trips"`
	TotalEarnings  float64 `json:"total_earnings"` // fare+tip over completed trips
	TotalDistance  float64 `json:"total_distance"` // km over completed trips
	TotalTips      float64 `json:"total_tips"`
	TotalDuration  float64 `json:"total_duration"` // minutes over completed trips
	AvgRating      float64 `json:"avg_rating"`     // over rated completed trips
	AvgFare        float64 `json:"avg_fare"`
	CompletedTrips int     `json:"completed_trips"`
	CancelledTrips int     `json:"cancelled_trips"`
}
