package waypoint

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func testApp(svc *Service) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app.Group("/waypoints"), svc, func(c *fiber.Ctx) error {
		c.Locals("user_id", "user-1")
		return c.Next()
	})
	return app
}

func TestWaypointHandlersCreateGet(t *testing.T) {
	mock, svc := newMockWaypointService(t, nil)
	app := testApp(svc)

	createdAt := time.Now()
	expectOwner(mock, "proj-1", "user-1")
	mock.ExpectQuery(`INSERT INTO waypoints`).
		WithArgs(pgxmock.AnyArg(), "proj-1", "user-1", "Sample pit", "", "soil_sample", 29.805, 63.095, 0.0).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	body, _ := json.Marshal(Waypoint{Name: "Sample pit", Type: "soil_sample", Lat: 63.095, Lng: 29.805})
	req := httptest.NewRequest(http.MethodPost, "/waypoints/proj-1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %v %d", err, resp.StatusCode)
	}

	mock.ExpectQuery(`FROM waypoints WHERE id=\$1`).
		WithArgs("wp-1").
		WillReturnRows(pgxmock.NewRows(waypointCols).
			AddRow("wp-1", "proj-1", "user-1", "Sample pit", "", "soil_sample", 63.095, 29.805, 0.0, createdAt))

	req = httptest.NewRequest(http.MethodGet, "/waypoints/proj-1/wp-1", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("get status: %v %d", err, resp.StatusCode)
	}
}

func TestWaypointHandlersCreateBadPayload(t *testing.T) {
	_, svc := newMockWaypointService(t, nil)
	app := testApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/waypoints/proj-1", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", resp.StatusCode)
	}
}

func TestWaypointHandlersCreateMissingName(t *testing.T) {
	_, svc := newMockWaypointService(t, nil)
	app := testApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/waypoints/proj-1", bytes.NewReader([]byte(`{"lat":1,"lng":2}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", resp.StatusCode)
	}
}

func TestWaypointHandlersSearch(t *testing.T) {
	mock, svc := newMockWaypointService(t, nil)
	app := testApp(svc)

	expectOwner(mock, "proj-1", "user-1")
	mock.ExpectQuery(`ST_DWithin`).
		WithArgs("proj-1", 29.8, 63.1, 5000.0).
		WillReturnRows(pgxmock.NewRows(waypointCols))

	req := httptest.NewRequest(http.MethodGet, "/waypoints/proj-1/search?lat=63.1&lng=29.8", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("search status: %v %d", err, resp.StatusCode)
	}
}

func TestWaypointHandlersDelete(t *testing.T) {
	mock, svc := newMockWaypointService(t, nil)
	app := testApp(svc)

	mock.ExpectQuery(`FROM waypoints WHERE id=\$1`).
		WithArgs("wp-1").
		WillReturnRows(pgxmock.NewRows(waypointCols).
			AddRow("wp-1", "proj-1", "user-1", "wp", "", "marker", 63.0, 29.0, 0.0, time.Now()))
	mock.ExpectExec(`DELETE FROM waypoints`).
		WithArgs("wp-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	req := httptest.NewRequest(http.MethodDelete, "/waypoints/proj-1/wp-1", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status: %v %d", err, resp.StatusCode)
	}
}

func TestWaypointHandlersPhotos(t *testing.T) {
	mock, svc := newMockWaypointService(t, nil)
	app := testApp(svc)

	createdAt := time.Now()
	mock.ExpectQuery(`FROM waypoints WHERE id=\$1`).
		WithArgs("wp-1").
		WillReturnRows(pgxmock.NewRows(waypointCols).
			AddRow("wp-1", "proj-1", "user-1", "wp", "", "marker", 63.0, 29.0, 0.0, createdAt))
	mock.ExpectQuery(`INSERT INTO waypoint_photos`).
		WithArgs(pgxmock.AnyArg(), "wp-1", "user-1", "https://blobs.example/p.jpg", "", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	body, _ := json.Marshal(map[string]string{"photo_url": "https://blobs.example/p.jpg"})
	req := httptest.NewRequest(http.MethodPost, "/waypoints/proj-1/wp-1/photos", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("add photo status: %v %d", err, resp.StatusCode)
	}
}
