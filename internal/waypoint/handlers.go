package waypoint

import (
	"strconv"
	"time"

	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/:projectID", authMiddleware, func(c *fiber.Ctx) error {
		var req Waypoint
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		wp, err := svc.Create(c.Context(), userID(c), c.Params("projectID"), req)
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(wp)
	})

	r.Get("/:projectID", authMiddleware, func(c *fiber.Ctx) error {
		waypoints, err := svc.List(c.Context(), userID(c), c.Params("projectID"))
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.JSON(waypoints)
	})

	r.Get("/:projectID/search", authMiddleware, func(c *fiber.Ctx) error {
		lat, _ := strconv.ParseFloat(c.Query("lat"), 64)
		lng, _ := strconv.ParseFloat(c.Query("lng"), 64)
		radius, _ := strconv.ParseFloat(c.Query("radius_km"), 64)
		if radius == 0 {
			radius = 5
		}
		results, err := svc.Search(c.Context(), userID(c), c.Params("projectID"), lat, lng, radius)
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.JSON(results)
	})

	r.Get("/:projectID/:id", authMiddleware, func(c *fiber.Ctx) error {
		wp, err := svc.Get(c.Context(), userID(c), c.Params("id"))
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.JSON(wp)
	})

	r.Put("/:projectID/:id", authMiddleware, func(c *fiber.Ctx) error {
		var req Waypoint
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		wp, err := svc.Update(c.Context(), userID(c), c.Params("id"), req)
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.JSON(wp)
	})

	r.Delete("/:projectID/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), userID(c), c.Params("id")); err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/:projectID/:id/photos", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			PhotoURL string    `json:"photo_url"`
			Caption  string    `json:"caption"`
			TakenAt  time.Time `json:"taken_at"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		photo, err := svc.AddPhoto(c.Context(), userID(c), c.Params("id"), body.PhotoURL, body.Caption, body.TakenAt)
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(photo)
	})

	r.Get("/:projectID/:id/photos", authMiddleware, func(c *fiber.Ctx) error {
		photos, err := svc.Photos(c.Context(), userID(c), c.Params("id"))
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.JSON(photos)
	})
}

func userID(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}
