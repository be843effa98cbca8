package project

import (
	"context"
	"errors"
	"time"

	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/apperr"
	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const projectColumns = `id, user_id, name, status, started_at, elapsed_seconds, last_activity, auto_paused, created_at`

type Service struct {
	db        db.Querier
	threshold time.Duration
	now       func() time.Time
}

func NewService(q db.Querier, inactivityThreshold time.Duration) *Service {
	return &Service{
		db:        q,
		threshold: inactivityThreshold,
		now:       time.Now,
	}
}

func (s *Service) Create(ctx context.Context, userID, name string) (Project, error) {
	if name == "" {
		return Project{}, apperr.New(apperr.KindValidation, "project name required")
	}

	p := Project{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   name,
		Status: StatusPaused,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO projects (id, user_id, name, status, elapsed_seconds, auto_paused)
		VALUES ($1,$2,$3,$4,0,FALSE)
		RETURNING created_at
	`, p.ID, p.UserID, p.Name, p.Status)
	if err := row.Scan(&p.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Project{}, apperr.Newf(apperr.KindConflict, "project name %q already taken", name)
		}
		return Project{}, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, userID, projectID string) (Project, error) {
	p, err := s.fetch(ctx, projectID)
	if err != nil {
		return Project{}, err
	}
	if p.UserID != userID {
		return Project{}, apperr.New(apperr.KindAuthorization, "project belongs to another user")
	}
	p.CurrentElapsedSeconds = Elapsed(p, s.now())
	return p, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Project, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+projectColumns+`
		FROM projects WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := s.now()
	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		p.CurrentElapsedSeconds = Elapsed(p, now)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// SetStatus applies one state-machine transition. Starting playback pauses
// every other playing project of the same user first, banking their time,
// so at most one project per user is ever playing. All of it runs in one
// transaction against row locks.
func (s *Service) SetStatus(ctx context.Context, userID, projectID, target string) (Project, error) {
	if !ValidStatus(target) {
		return Project{}, apperr.Newf(apperr.KindValidation, "invalid status %q", target)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Project{}, err
	}

	p, err := s.applyStatus(ctx, tx, userID, projectID, target)
	if err != nil {
		_ = tx.Rollback(ctx)
		return Project{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Project{}, err
	}
	p.CurrentElapsedSeconds = Elapsed(p, s.now())
	return p, nil
}

func (s *Service) applyStatus(ctx context.Context, tx pgx.Tx, userID, projectID, target string) (Project, error) {
	p, err := lockProject(ctx, tx, projectID)
	if err != nil {
		return Project{}, err
	}
	if p.UserID != userID {
		return Project{}, apperr.New(apperr.KindAuthorization, "project belongs to another user")
	}
	if p.Status == StatusEnded {
		return Project{}, apperr.New(apperr.KindValidation, "project already ended")
	}

	now := s.now()
	switch target {
	case StatusPlaying:
		if err := s.pauseOthers(ctx, tx, userID, projectID, now); err != nil {
			return Project{}, err
		}
		if p.Status == StatusPlaying {
			return p, nil
		}
		if _, err := tx.Exec(ctx, `
			UPDATE projects SET status=$2, started_at=$3, auto_paused=FALSE
			WHERE id=$1
		`, p.ID, StatusPlaying, now); err != nil {
			return Project{}, err
		}
		p.Status = StatusPlaying
		p.StartedAt = &now
		p.AutoPaused = false
		return p, nil

	case StatusPaused:
		return bankAndSet(ctx, tx, p, now, StatusPaused, false)

	default:
		return bankAndSet(ctx, tx, p, now, StatusEnded, false)
	}
}

// Heartbeat checkpoints a playing project: the open segment is banked and
// a new one starts at now, and last_activity is refreshed. On a project
// that is not playing it is a no-op.
func (s *Service) Heartbeat(ctx context.Context, userID, projectID string) (Project, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Project{}, err
	}

	p, err := s.checkpoint(ctx, tx, userID, projectID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return Project{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Project{}, err
	}
	p.CurrentElapsedSeconds = Elapsed(p, s.now())
	return p, nil
}

func (s *Service) checkpoint(ctx context.Context, tx pgx.Tx, userID, projectID string) (Project, error) {
	p, err := lockProject(ctx, tx, projectID)
	if err != nil {
		return Project{}, err
	}
	if p.UserID != userID {
		return Project{}, apperr.New(apperr.KindAuthorization, "project belongs to another user")
	}
	if p.Status != StatusPlaying {
		return p, nil
	}

	now := s.now()
	banked := Elapsed(p, now)
	if _, err := tx.Exec(ctx, `
		UPDATE projects SET elapsed_seconds=$2, started_at=$3, last_activity=$3
		WHERE id=$1
	`, p.ID, banked, now); err != nil {
		return Project{}, err
	}
	p.ElapsedSeconds = banked
	p.StartedAt = &now
	p.LastActivity = &now
	return p, nil
}

// Active returns the user's playing project, applying the auto-pause
// policy inline when the project has gone stale. Returns nil when nothing
// is playing.
func (s *Service) Active(ctx context.Context, userID string) (*Project, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+projectColumns+`
		FROM projects WHERE user_id=$1 AND status='playing'
		LIMIT 1
	`, userID)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	now := s.now()
	if Stale(p, now, s.threshold) {
		if _, err := s.AutoPause(ctx, p.ID); err != nil {
			return nil, err
		}
		p, err = s.fetch(ctx, p.ID)
		if err != nil {
			return nil, err
		}
	}
	p.CurrentElapsedSeconds = Elapsed(p, now)
	return &p, nil
}

// AutoPause banks and pauses a project on behalf of the inactivity sweep.
// The transition is guarded on status inside the transaction, so repeated
// calls on an already-paused project are no-ops and never bank twice.
func (s *Service) AutoPause(ctx context.Context, projectID string) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}

	p, err := lockProject(ctx, tx, projectID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return false, err
	}
	if p.Status != StatusPlaying {
		return false, tx.Commit(ctx)
	}

	if _, err := bankAndSet(ctx, tx, p, s.now(), StatusPaused, true); err != nil {
		_ = tx.Rollback(ctx)
		return false, err
	}
	return true, tx.Commit(ctx)
}

// StaleCandidates lists playing projects whose last observed activity is
// older than the inactivity threshold.
func (s *Service) StaleCandidates(ctx context.Context) ([]string, error) {
	cutoff := s.now().Add(-s.threshold)
	rows, err := s.db.Query(ctx, `
		SELECT id FROM projects
		WHERE status='playing' AND COALESCE(last_activity, started_at) < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TouchActivity records a sign of life against a project (waypoint
// creation, point upload). It clears a previous system-initiated pause
// flag but never changes status.
func (s *Service) TouchActivity(ctx context.Context, projectID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE projects SET last_activity=$2, auto_paused=FALSE
		WHERE id=$1
	`, projectID, s.now())
	return err
}

func (s *Service) Delete(ctx context.Context, userID, projectID string) error {
	p, err := s.fetch(ctx, projectID)
	if err != nil {
		return err
	}
	if p.UserID != userID {
		return apperr.New(apperr.KindAuthorization, "project belongs to another user")
	}
	_, err = s.db.Exec(ctx, `DELETE FROM projects WHERE id=$1`, projectID)
	return err
}

func (s *Service) fetch(ctx context.Context, projectID string) (Project, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+projectColumns+`
		FROM projects WHERE id=$1
	`, projectID)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, apperr.New(apperr.KindNotFound, "project not found")
		}
		return Project{}, err
	}
	return p, nil
}

// pauseOthers banks and pauses every other playing project of the user.
func (s *Service) pauseOthers(ctx context.Context, tx pgx.Tx, userID, exceptID string, now time.Time) error {
	rows, err := tx.Query(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE user_id=$1 AND status='playing' AND id<>$2
		FOR UPDATE
	`, userID, exceptID)
	if err != nil {
		return err
	}
	var others []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			rows.Close()
			return err
		}
		others = append(others, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, other := range others {
		if _, err := bankAndSet(ctx, tx, other, now, StatusPaused, false); err != nil {
			return err
		}
	}
	return nil
}

// bankAndSet closes the open segment (if any) into elapsed_seconds and
// moves the project to the target status in one update.
func bankAndSet(ctx context.Context, tx pgx.Tx, p Project, now time.Time, target string, auto bool) (Project, error) {
	banked := Elapsed(p, now)
	if _, err := tx.Exec(ctx, `
		UPDATE projects SET status=$2, started_at=NULL, elapsed_seconds=$3, auto_paused=$4
		WHERE id=$1
	`, p.ID, target, banked, auto); err != nil {
		return Project{}, err
	}
	p.Status = target
	p.StartedAt = nil
	p.ElapsedSeconds = banked
	p.AutoPaused = auto
	return p, nil
}

func lockProject(ctx context.Context, tx pgx.Tx, projectID string) (Project, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+projectColumns+`
		FROM projects WHERE id=$1
		FOR UPDATE
	`, projectID)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, apperr.New(apperr.KindNotFound, "project not found")
		}
		return Project{}, err
	}
	return p, nil
}

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Status, &p.StartedAt, &p.ElapsedSeconds, &p.LastActivity, &p.AutoPaused, &p.CreatedAt)
	return p, err
}
