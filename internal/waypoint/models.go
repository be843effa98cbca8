package waypoint

import "time"

// Waypoint is a surveyed point of interest inside a project.
type Waypoint struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	ElevationM  float64   `json:"elevation_m"`
	CreatedAt   time.Time `json:"created_at"`
}

// Photo is registered after the client has uploaded the image to the
// external blob store; only the URL lives here.
type Photo struct {
	ID         string    `json:"id"`
	WaypointID string    `json:"waypoint_id"`
	UserID     string    `json:"user_id"`
	PhotoURL   string    `json:"photo_url"`
	Caption    string    `json:"caption"`
	TakenAt    time.Time `json:"taken_at"`
	CreatedAt  time.Time `json:"created_at"`
}
