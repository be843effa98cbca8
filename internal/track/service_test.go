package track

import (
	"context"
	"testing"
	"time"

	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

var summaryCols = []string{"id", "project_id", "user_id", "started_at", "ended_at", "is_active", "total_distance_m", "total_duration_sec", "point_count"}
var pointCols = []string{"id", "track_id", "project_id", "user_id", "lat", "lng", "accuracy_m", "elevation_m", "recorded_at"}

type activityStub struct {
	touched []string
	err     error
}

func (a *activityStub) TouchActivity(_ context.Context, projectID string) error {
	a.touched = append(a.touched, projectID)
	return a.err
}

func newMockTrackService(t *testing.T, now time.Time, activity ActivityRecorder) (pgxmock.PgxPoolIface, *Service) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)

	svc := NewService(mock, nil, activity, 100)
	svc.now = func() time.Time { return now }
	return mock, svc
}

func TestStartTrackDeactivatesPrevious(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	mock, svc := newMockTrackService(t, now, nil)

	mock.ExpectQuery(`SELECT user_id FROM projects WHERE id=\$1`).
		WithArgs("proj-1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow("user-1"))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE track_summaries SET is_active=FALSE, ended_at=\$3`).
		WithArgs("proj-1", "user-1", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO track_summaries`).
		WithArgs(pgxmock.AnyArg(), "proj-1", "user-1", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	summary, err := svc.Start(context.Background(), "user-1", "proj-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !summary.IsActive || summary.PointCount != 0 {
		t.Fatalf("expected fresh active summary, got %+v", summary)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStartTrackAuthorization(t *testing.T) {
	mock, svc := newMockTrackService(t, time.Now(), nil)

	mock.ExpectQuery(`SELECT user_id FROM projects WHERE id=\$1`).
		WithArgs("proj-1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow("someone-else"))

	_, err := svc.Start(context.Background(), "user-1", "proj-1")
	if apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestStartTrackProjectNotFound(t *testing.T) {
	mock, svc := newMockTrackService(t, time.Now(), nil)

	mock.ExpectQuery(`SELECT user_id FROM projects WHERE id=\$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := svc.Start(context.Background(), "user-1", "missing")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAppendPointsBatch(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	activity := &activityStub{}
	mock, svc := newMockTrackService(t, now, activity)

	mock.ExpectQuery(`SELECT id FROM track_summaries\s+WHERE project_id=\$1 AND user_id=\$2 AND is_active`).
		WithArgs("proj-1", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("track-1"))
	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"track_points"}, pointColumns).
		WillReturnResult(3)
	mock.ExpectExec(`UPDATE track_summaries SET point_count = point_count \+ \$2`).
		WithArgs("track-1", 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	saved, err := svc.AppendPoints(context.Background(), "user-1", "proj-1", []PointInput{
		{Lat: -6.2, Lng: 106.8},
		{Lat: -6.2001, Lng: 106.8001},
		{Lat: -6.2002, Lng: 106.8002},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if saved != 3 {
		t.Fatalf("expected 3 saved, got %d", saved)
	}
	if len(activity.touched) != 1 || activity.touched[0] != "proj-1" {
		t.Fatalf("expected project activity refresh, got %v", activity.touched)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAppendPointsNoActiveTrack(t *testing.T) {
	mock, svc := newMockTrackService(t, time.Now(), nil)

	mock.ExpectQuery(`SELECT id FROM track_summaries\s+WHERE project_id=\$1 AND user_id=\$2 AND is_active`).
		WithArgs("proj-1", "user-1").
		WillReturnError(pgx.ErrNoRows)

	_, err := svc.AppendPoints(context.Background(), "user-1", "proj-1", []PointInput{{Lat: 1, Lng: 1}})
	if apperr.KindOf(err) != apperr.KindNoActiveSession {
		t.Fatalf("expected no-active-session error, got %v", err)
	}

	// nothing may be persisted when there is no session
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAppendPointsValidation(t *testing.T) {
	_, svc := newMockTrackService(t, time.Now(), nil)

	_, err := svc.AppendPoints(context.Background(), "user-1", "proj-1", nil)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for empty batch, got %v", err)
	}

	_, err = svc.AppendPoints(context.Background(), "user-1", "proj-1", []PointInput{{Lat: 95, Lng: 0}})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for out-of-range latitude, got %v", err)
	}

	over := make([]PointInput, 101)
	_, err = svc.AppendPoints(context.Background(), "user-1", "proj-1", over)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for oversized batch, got %v", err)
	}
}

// Three fixes at the same location 5s apart: zero distance, 10s duration.
func TestEndTrackComputesTotals(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 30, 0, time.UTC)
	mock, svc := newMockTrackService(t, now, nil)

	t0 := now.Add(-30 * time.Second)
	mock.ExpectQuery(`SELECT id FROM track_summaries\s+WHERE project_id=\$1 AND user_id=\$2 AND is_active`).
		WithArgs("proj-1", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("track-1"))
	mock.ExpectQuery(`FROM track_points WHERE track_id=\$1`).
		WithArgs("track-1").
		WillReturnRows(pgxmock.NewRows(pointCols).
			AddRow(int64(1), "track-1", "proj-1", "user-1", -6.2, 106.8, nil, nil, t0).
			AddRow(int64(2), "track-1", "proj-1", "user-1", -6.2, 106.8, nil, nil, t0.Add(5*time.Second)).
			AddRow(int64(3), "track-1", "proj-1", "user-1", -6.2, 106.8, nil, nil, t0.Add(10*time.Second)))
	mock.ExpectExec(`UPDATE track_summaries\s+SET is_active=FALSE, ended_at=\$2, total_distance_m=\$3, total_duration_sec=\$4`).
		WithArgs("track-1", now, 0.0, int64(10)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`FROM track_summaries WHERE id=\$1`).
		WithArgs("track-1").
		WillReturnRows(pgxmock.NewRows(summaryCols).
			AddRow("track-1", "proj-1", "user-1", t0, &now, false, 0.0, int64(10), 3))

	summary, err := svc.End(context.Background(), "user-1", "proj-1")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if summary.IsActive || summary.TotalDistanceM != 0 || summary.TotalDurationSec != 10 || summary.PointCount != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEndTrackNoActive(t *testing.T) {
	mock, svc := newMockTrackService(t, time.Now(), nil)

	mock.ExpectQuery(`SELECT id FROM track_summaries\s+WHERE project_id=\$1 AND user_id=\$2 AND is_active`).
		WithArgs("proj-1", "user-1").
		WillReturnError(pgx.ErrNoRows)

	_, err := svc.End(context.Background(), "user-1", "proj-1")
	if apperr.KindOf(err) != apperr.KindNoActiveSession {
		t.Fatalf("expected no-active-session error, got %v", err)
	}
}

// Distance is summed within a session only: two sessions far apart never
// accumulate the jump between them.
func TestPathDistanceSegmentIsolation(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	seg1 := []Point{
		{Lat: 0, Lng: 0, RecordedAt: t0},
		{Lat: 0.001, Lng: 0, RecordedAt: t0.Add(time.Minute)},
	}
	seg2 := []Point{
		{Lat: 10, Lng: 10, RecordedAt: t0.Add(time.Hour)},
		{Lat: 10.001, Lng: 10, RecordedAt: t0.Add(time.Hour + time.Minute)},
	}

	perSegment := pathDistanceM(seg1) + pathDistanceM(seg2)
	if perSegment > 500 {
		t.Fatalf("per-segment distance should stay short, got %v", perSegment)
	}

	bridged := pathDistanceM(append(append([]Point{}, seg1...), seg2...))
	if bridged < 1_000_000 {
		t.Fatalf("expected the naive bridged distance to be huge, got %v", bridged)
	}
}

func TestPathDurationFewPoints(t *testing.T) {
	if d := pathDurationSec(nil); d != 0 {
		t.Fatalf("no points: expected 0, got %d", d)
	}
	if d := pathDurationSec([]Point{{RecordedAt: time.Now()}}); d != 0 {
		t.Fatalf("single point: expected 0, got %d", d)
	}
}

func TestProjectDistanceSumsStoredSegments(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	mock, svc := newMockTrackService(t, now, nil)

	ended := now.Add(-time.Hour)
	mock.ExpectQuery(`FROM track_summaries\s+WHERE project_id=\$1 AND user_id=\$2\s+ORDER BY started_at`).
		WithArgs("proj-1", "user-1").
		WillReturnRows(pgxmock.NewRows(summaryCols).
			AddRow("track-1", "proj-1", "user-1", now.Add(-3*time.Hour), &ended, false, 120.5, int64(600), 50).
			AddRow("track-2", "proj-1", "user-1", now.Add(-2*time.Hour), &ended, false, 79.5, int64(300), 20))

	total, err := svc.ProjectDistance(context.Background(), "user-1", "proj-1")
	if err != nil {
		t.Fatalf("project distance: %v", err)
	}
	if total != 200 {
		t.Fatalf("expected 200m across segments, got %v", total)
	}
}
