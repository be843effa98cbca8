package project

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
)

var errSweep = errors.New("sweep failure")

func TestSweepPausesStaleProjects(t *testing.T) {
	now := time.Date(2025, 3, 1, 16, 0, 0, 0, time.UTC)
	mock, svc := newMockService(t, now)
	m := NewMonitor(svc, time.Minute)

	start := now.Add(-7 * time.Hour)
	mock.ExpectQuery(`SELECT id FROM projects\s+WHERE status='playing' AND COALESCE\(last_activity, started_at\) < \$1`).
		WithArgs(now.Add(-6 * time.Hour)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("proj-1").AddRow("proj-2"))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM projects WHERE id=\$1\s+FOR UPDATE`).
		WithArgs("proj-1").
		WillReturnRows(pgxmock.NewRows(projectCols).
			AddRow("proj-1", "user-1", "a", StatusPlaying, &start, int64(0), nil, false, start))
	mock.ExpectExec(`UPDATE projects SET status=\$2, started_at=NULL, elapsed_seconds=\$3, auto_paused=\$4`).
		WithArgs("proj-1", StatusPaused, int64(7*3600), true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	// the second project fails; the sweep must keep going
	mock.ExpectBegin().WillReturnError(errSweep)

	if paused := m.Sweep(context.Background()); paused != 1 {
		t.Fatalf("expected exactly one project paused, got %d", paused)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// A second sweep right after the first finds the project no longer playing
// and banks nothing.
func TestSweepIdempotent(t *testing.T) {
	now := time.Date(2025, 3, 1, 16, 0, 0, 0, time.UTC)
	mock, svc := newMockService(t, now)
	m := NewMonitor(svc, time.Minute)

	mock.ExpectQuery(`SELECT id FROM projects\s+WHERE status='playing'`).
		WithArgs(now.Add(-6 * time.Hour)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("proj-1"))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM projects WHERE id=\$1\s+FOR UPDATE`).
		WithArgs("proj-1").
		WillReturnRows(pgxmock.NewRows(projectCols).
			AddRow("proj-1", "user-1", "a", StatusPaused, nil, int64(7*3600), nil, true, now))
	mock.ExpectCommit()

	if paused := m.Sweep(context.Background()); paused != 0 {
		t.Fatalf("expected no-op sweep, got %d", paused)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSweepQueryError(t *testing.T) {
	mock, svc := newMockService(t, time.Now())
	m := NewMonitor(svc, time.Minute)

	mock.ExpectQuery(`SELECT id FROM projects\s+WHERE status='playing'`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(errSweep)

	if paused := m.Sweep(context.Background()); paused != 0 {
		t.Fatalf("expected zero on query failure, got %d", paused)
	}
}

func TestMonitorStartStop(t *testing.T) {
	_, svc := newMockService(t, time.Now())
	m := NewMonitor(svc, time.Hour)

	m.Start()
	done := m.Stop()
	select {
	case <-done.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected stop to drain promptly")
	}
}
