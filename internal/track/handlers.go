package track

import (
	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/:projectID/start", authMiddleware, func(c *fiber.Ctx) error {
		summary, err := svc.Start(c.Context(), userID(c), c.Params("projectID"))
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(summary)
	})

	r.Post("/:projectID/points", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			Points []PointInput `json:"points"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		saved, err := svc.AppendPoints(c.Context(), userID(c), c.Params("projectID"), req.Points)
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"saved_count": saved})
	})

	r.Post("/:projectID/end", authMiddleware, func(c *fiber.Ctx) error {
		summary, err := svc.End(c.Context(), userID(c), c.Params("projectID"))
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.JSON(summary)
	})

	r.Get("/:projectID/summaries", authMiddleware, func(c *fiber.Ctx) error {
		summaries, err := svc.Summaries(c.Context(), userID(c), c.Params("projectID"))
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.JSON(summaries)
	})

	r.Get("/:projectID/distance", authMiddleware, func(c *fiber.Ctx) error {
		total, err := svc.ProjectDistance(c.Context(), userID(c), c.Params("projectID"))
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.JSON(fiber.Map{"total_distance_m": total})
	})

	r.Get("/:projectID/export.gpx", authMiddleware, func(c *fiber.Ctx) error {
		doc, err := svc.ExportGPX(c.Context(), userID(c), c.Params("projectID"))
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		c.Set(fiber.HeaderContentType, "application/gpx+xml")
		return c.Send(doc)
	})
}

func userID(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}
