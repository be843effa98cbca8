package track

import "time"

// Summary is one recording session: a contiguous run of points whose
// distance is never bridged to neighbouring sessions.
type Summary struct {
	ID               string     `json:"id"`
	ProjectID        string     `json:"project_id"`
	UserID           string     `json:"user_id"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	IsActive         bool       `json:"is_active"`
	TotalDistanceM   float64    `json:"total_distance_m"`
	TotalDurationSec int64      `json:"total_duration_sec"`
	PointCount       int        `json:"point_count"`
}

type Point struct {
	ID         int64      `json:"id"`
	TrackID    string     `json:"track_id"`
	ProjectID  string     `json:"project_id"`
	UserID     string     `json:"user_id"`
	Lat        float64    `json:"lat"`
	Lng        float64    `json:"lng"`
	AccuracyM  *float64   `json:"accuracy_m,omitempty"`
	ElevationM *float64   `json:"elevation_m,omitempty"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// PointInput is one uploaded GPS fix. Points within one batch are assumed
// already ordered by acquisition time; RecordedAt defaults to upload time
// when the client omits it.
type PointInput struct {
	Lat        float64    `json:"lat"`
	Lng        float64    `json:"lng"`
	AccuracyM  *float64   `json:"accuracy_m,omitempty"`
	ElevationM *float64   `json:"elevation_m,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}
