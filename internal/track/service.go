package track

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/apperr"
	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/db"
	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/shared/geo"
	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/stream"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const summaryColumns = `id, project_id, user_id, started_at, ended_at, is_active, total_distance_m, total_duration_sec, point_count`

var pointColumns = []string{"track_id", "project_id", "user_id", "lat", "lng", "accuracy_m", "elevation_m", "recorded_at"}

// ActivityRecorder marks a project as recently active. Satisfied by the
// project service.
type ActivityRecorder interface {
	TouchActivity(ctx context.Context, projectID string) error
}

type Service struct {
	db       db.Querier
	hub      *stream.Hub
	activity ActivityRecorder
	maxBatch int
	now      func() time.Time
}

func NewService(q db.Querier, hub *stream.Hub, activity ActivityRecorder, maxBatch int) *Service {
	if maxBatch <= 0 {
		maxBatch = 500
	}
	return &Service{
		db:       q,
		hub:      hub,
		activity: activity,
		maxBatch: maxBatch,
		now:      time.Now,
	}
}

// Start opens a new recording session for the project, deactivating any
// previous active session for the same (project, user) in the same
// transaction so at most one stays active.
func (s *Service) Start(ctx context.Context, userID, projectID string) (Summary, error) {
	if err := s.checkProjectOwner(ctx, userID, projectID); err != nil {
		return Summary{}, err
	}

	now := s.now()
	summary := Summary{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		UserID:    userID,
		StartedAt: now,
		IsActive:  true,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Summary{}, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE track_summaries SET is_active=FALSE, ended_at=$3
		WHERE project_id=$1 AND user_id=$2 AND is_active
	`, projectID, userID, now); err != nil {
		_ = tx.Rollback(ctx)
		return Summary{}, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO track_summaries (id, project_id, user_id, started_at, is_active, total_distance_m, total_duration_sec, point_count)
		VALUES ($1,$2,$3,$4,TRUE,0,0,0)
	`, summary.ID, projectID, userID, now); err != nil {
		_ = tx.Rollback(ctx)
		return Summary{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Summary{}, err
	}
	return summary, nil
}

// AppendPoints persists one batch of fixes against the active session,
// all-or-nothing. The batch is streamed with COPY rather than row-by-row
// inserts.
func (s *Service) AppendPoints(ctx context.Context, userID, projectID string, points []PointInput) (int, error) {
	if len(points) == 0 {
		return 0, apperr.New(apperr.KindValidation, "point batch must not be empty")
	}
	if len(points) > s.maxBatch {
		return 0, apperr.Newf(apperr.KindValidation, "point batch exceeds %d points", s.maxBatch)
	}
	for _, p := range points {
		if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
			return 0, apperr.Newf(apperr.KindValidation, "coordinate out of range: %v,%v", p.Lat, p.Lng)
		}
	}

	trackID, err := s.activeTrackID(ctx, userID, projectID)
	if err != nil {
		return 0, err
	}

	now := s.now()
	rows := make([][]any, 0, len(points))
	for _, p := range points {
		recordedAt := now
		if p.RecordedAt != nil {
			recordedAt = *p.RecordedAt
		}
		rows = append(rows, []any{trackID, projectID, userID, p.Lat, p.Lng, p.AccuracyM, p.ElevationM, recordedAt})
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	saved, err := tx.CopyFrom(ctx, pgx.Identifier{"track_points"}, pointColumns, pgx.CopyFromRows(rows))
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE track_summaries SET point_count = point_count + $2
		WHERE id=$1
	`, trackID, int(saved)); err != nil {
		_ = tx.Rollback(ctx)
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	if s.activity != nil {
		if err := s.activity.TouchActivity(ctx, projectID); err != nil {
			log.Printf("activity refresh for project %s failed: %v", projectID, err)
		}
	}
	if s.hub != nil {
		payload, _ := json.Marshal(points)
		s.hub.Broadcast(trackID, payload)
	}
	return int(saved), nil
}

// End finalizes the active session: path distance over consecutive fixes,
// duration from first to last fix, session closed.
func (s *Service) End(ctx context.Context, userID, projectID string) (Summary, error) {
	trackID, err := s.activeTrackID(ctx, userID, projectID)
	if err != nil {
		return Summary{}, err
	}

	points, err := s.trackPoints(ctx, trackID)
	if err != nil {
		return Summary{}, err
	}
	distance := pathDistanceM(points)
	duration := pathDurationSec(points)

	now := s.now()
	if _, err := s.db.Exec(ctx, `
		UPDATE track_summaries
		SET is_active=FALSE, ended_at=$2, total_distance_m=$3, total_duration_sec=$4
		WHERE id=$1
	`, trackID, now, distance, duration); err != nil {
		return Summary{}, err
	}

	return s.summary(ctx, trackID)
}

func (s *Service) Summaries(ctx context.Context, userID, projectID string) ([]Summary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+summaryColumns+`
		FROM track_summaries
		WHERE project_id=$1 AND user_id=$2
		ORDER BY started_at
	`, projectID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		sm, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, sm)
	}
	return summaries, rows.Err()
}

// ProjectDistance sums per-session path distances. Sessions are summed
// individually so the gap between the end of one session and the start of
// the next never counts as walked distance.
func (s *Service) ProjectDistance(ctx context.Context, userID, projectID string) (float64, error) {
	summaries, err := s.Summaries(ctx, userID, projectID)
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, sm := range summaries {
		if sm.IsActive {
			points, err := s.trackPoints(ctx, sm.ID)
			if err != nil {
				return 0, err
			}
			total += pathDistanceM(points)
			continue
		}
		total += sm.TotalDistanceM
	}
	return total, nil
}

// pathDistanceM sums great-circle distances between consecutive fixes of
// one session; the first fix contributes zero.
func pathDistanceM(points []Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += geo.HaversineM(points[i-1].Lat, points[i-1].Lng, points[i].Lat, points[i].Lng)
	}
	return total
}

func pathDurationSec(points []Point) int64 {
	if len(points) < 2 {
		return 0
	}
	first := points[0].RecordedAt
	last := points[len(points)-1].RecordedAt
	return int64(last.Sub(first) / time.Second)
}

func (s *Service) activeTrackID(ctx context.Context, userID, projectID string) (string, error) {
	var trackID string
	err := s.db.QueryRow(ctx, `
		SELECT id FROM track_summaries
		WHERE project_id=$1 AND user_id=$2 AND is_active
	`, projectID, userID).Scan(&trackID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.New(apperr.KindNoActiveSession, "no active track for project")
		}
		return "", err
	}
	return trackID, nil
}

func (s *Service) trackPoints(ctx context.Context, trackID string) ([]Point, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, track_id, project_id, user_id, lat, lng, accuracy_m, elevation_m, recorded_at
		FROM track_points WHERE track_id=$1
		ORDER BY recorded_at
	`, trackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.ID, &p.TrackID, &p.ProjectID, &p.UserID, &p.Lat, &p.Lng, &p.AccuracyM, &p.ElevationM, &p.RecordedAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *Service) summary(ctx context.Context, trackID string) (Summary, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+summaryColumns+`
		FROM track_summaries WHERE id=$1
	`, trackID)
	sm, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Summary{}, apperr.New(apperr.KindNotFound, "track not found")
		}
		return Summary{}, err
	}
	return sm, nil
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

func scanSummary(row pgx.Row) (Summary, error) {
	var sm Summary
	err := row.Scan(&sm.ID, &sm.ProjectID, &sm.UserID, &sm.StartedAt, &sm.EndedAt, &sm.IsActive, &sm.TotalDistanceM, &sm.TotalDurationSec, &sm.PointCount)
	return sm, err
}
