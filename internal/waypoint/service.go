package waypoint

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/apperr"
	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const waypointColumns = `id, project_id, user_id, name, description, type,
	       ST_Y(location::geometry), ST_X(location::geometry),
	       COALESCE(elevation_m,0), created_at`

// ActivityRecorder marks the owning project as recently worked on.
type ActivityRecorder interface {
	TouchActivity(ctx context.Context, projectID string) error
}

type Service struct {
	db       db.Querier
	activity ActivityRecorder

	now func() time.Time
}

func NewService(q db.Querier, activity ActivityRecorder) *Service {
	return &Service{db: q, activity: activity, now: time.Now}
}

func (s *Service) Create(ctx context.Context, userID, projectID string, input Waypoint) (Waypoint, error) {
	if input.Name == "" {
		return Waypoint{}, apperr.New(apperr.KindValidation, "name required")
	}
	if input.Lat < -90 || input.Lat > 90 || input.Lng < -180 || input.Lng > 180 {
		return Waypoint{}, apperr.Newf(apperr.KindValidation, "coordinate out of range: %v,%v", input.Lat, input.Lng)
	}
	if err := s.checkProjectOwner(ctx, userID, projectID); err != nil {
		return Waypoint{}, err
	}

	input.ID = uuid.NewString()
	input.ProjectID = projectID
	input.UserID = userID
	row := s.db.QueryRow(ctx, `
		INSERT INTO waypoints (id, project_id, user_id, name, description, type, location, elevation_m)
		VALUES ($1,$2,$3,$4,$5,$6, ST_SetSRID(ST_MakePoint($7,$8), 4326)::geography, $9)
		RETURNING created_at
	`, input.ID, input.ProjectID, input.UserID, input.Name, input.Description, input.Type, input.Lng, input.Lat, input.ElevationM)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Waypoint{}, err
	}

	if s.activity != nil {
		if err := s.activity.TouchActivity(ctx, projectID); err != nil {
			log.Printf("activity refresh for project %s failed: %v", projectID, err)
		}
	}
	return input, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (Waypoint, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+waypointColumns+`
		FROM waypoints WHERE id=$1
	`, id)
	wp, err := scanWaypoint(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Waypoint{}, apperr.New(apperr.KindNotFound, "waypoint not found")
		}
		return Waypoint{}, err
	}
	if wp.UserID != userID {
		return Waypoint{}, apperr.New(apperr.KindAuthorization, "waypoint belongs to another user")
	}
	return wp, nil
}

func (s *Service) List(ctx context.Context, userID, projectID string) ([]Waypoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+waypointColumns+`
		FROM waypoints
		WHERE project_id=$1 AND user_id=$2
		ORDER BY created_at
	`, projectID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var waypoints []Waypoint
	for rows.Next() {
		wp, err := scanWaypoint(rows)
		if err != nil {
			return nil, err
		}
		waypoints = append(waypoints, wp)
	}
	return waypoints, rows.Err()
}

// Update merges non-zero patch fields into the stored waypoint.
func (s *Service) Update(ctx context.Context, userID, id string, patch Waypoint) (Waypoint, error) {
	wp, err := s.Get(ctx, userID, id)
	if err != nil {
		return Waypoint{}, err
	}
	if patch.Name != "" {
		wp.Name = patch.Name
	}
	if patch.Description != "" {
		wp.Description = patch.Description
	}
	if patch.Type != "" {
		wp.Type = patch.Type
	}
	if patch.Lat != 0 {
		wp.Lat = patch.Lat
	}
	if patch.Lng != 0 {
		wp.Lng = patch.Lng
	}
	if patch.ElevationM != 0 {
		wp.ElevationM = patch.ElevationM
	}

	_, err = s.db.Exec(ctx, `
		UPDATE waypoints
		SET name=$2, description=$3, type=$4,
		    location=ST_SetSRID(ST_MakePoint($5,$6), 4326)::geography,
		    elevation_m=$7
		WHERE id=$1
	`, wp.ID, wp.Name, wp.Description, wp.Type, wp.Lng, wp.Lat, wp.ElevationM)
	if err != nil {
		return Waypoint{}, err
	}
	return wp, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `DELETE FROM waypoints WHERE id=$1`, id)
	return err
}

func (s *Service) AddPhoto(ctx context.Context, userID, waypointID, url, caption string, takenAt time.Time) (Photo, error) {
	if url == "" {
		return Photo{}, apperr.New(apperr.KindValidation, "photo_url required")
	}
	if _, err := s.Get(ctx, userID, waypointID); err != nil {
		return Photo{}, err
	}
	if takenAt.IsZero() {
		takenAt = s.now()
	}

	photo := Photo{
		ID:         uuid.NewString(),
		WaypointID: waypointID,
		UserID:     userID,
		PhotoURL:   url,
		Caption:    caption,
		TakenAt:    takenAt,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO waypoint_photos (id, waypoint_id, user_id, photo_url, caption, taken_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, photo.ID, photo.WaypointID, photo.UserID, photo.PhotoURL, photo.Caption, photo.TakenAt)
	if err := row.Scan(&photo.CreatedAt); err != nil {
		return Photo{}, err
	}
	return photo, nil
}

func (s *Service) Photos(ctx context.Context, userID, waypointID string) ([]Photo, error) {
	if _, err := s.Get(ctx, userID, waypointID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, waypoint_id, user_id, photo_url, caption, taken_at, created_at
		FROM waypoint_photos WHERE waypoint_id=$1
		ORDER BY created_at DESC
	`, waypointID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []Photo
	for rows.Next() {
		var p Photo
		if err := rows.Scan(&p.ID, &p.WaypointID, &p.UserID, &p.PhotoURL, &p.Caption, &p.TakenAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// Search returns the project's waypoints within radiusKm of a center.
func (s *Service) Search(ctx context.Context, userID, projectID string, lat, lng, radiusKm float64) ([]Waypoint, error) {
	if err := s.checkProjectOwner(ctx, userID, projectID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+waypointColumns+`
		FROM waypoints
		WHERE project_id=$1
		  AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($2,$3), 4326)::geography, $4)
		ORDER BY created_at DESC
	`, projectID, lng, lat, radiusKm*1000)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Waypoint
	for rows.Next() {
		wp, err := scanWaypoint(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, wp)
	}
	return results, rows.Err()
}

func (s *Service) checkProjectOwner(ctx context.Context, userID, projectID string) error {
	var ownerID string
	err := s.db.QueryRow(ctx, `
		SELECT user_id FROM projects WHERE id=$1
	`, projectID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.New(apperr.KindNotFound, "project not found")
		}
		return err
	}
	if ownerID != userID {
		return apperr.New(apperr.KindAuthorization, "project belongs to another user")
	}
	return nil
}

func scanWaypoint(row pgx.Row) (Waypoint, error) {
	var wp Waypoint
	err := row.Scan(&wp.ID, &wp.ProjectID, &wp.UserID, &wp.Name, &wp.Description, &wp.Type, &wp.Lat, &wp.Lng, &wp.ElevationM, &wp.CreatedAt)
	return wp, err
}
