package project

import "time"

const (
	StatusPaused  = "paused"
	StatusPlaying = "playing"
	StatusEnded   = "ended"
)

// Project is a survey project. StartedAt is non-nil iff Status is
// "playing"; ElapsedSeconds accumulates closed playing segments only.
type Project struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Name           string     `json:"name"`
	Status         string     `json:"status"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ElapsedSeconds int64      `json:"elapsed_seconds"`
	LastActivity   *time.Time `json:"last_activity,omitempty"`
	AutoPaused     bool       `json:"auto_paused"`
	CreatedAt      time.Time  `json:"created_at"`

	// CurrentElapsedSeconds includes the open segment, if any. Computed
	// on read, never stored.
	CurrentElapsedSeconds int64 `json:"current_elapsed_seconds"`
}

func ValidStatus(s string) bool {
	switch s {
	case StatusPaused, StatusPlaying, StatusEnded:
		return true
	}
	return false
}
