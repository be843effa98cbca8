package project

import (
	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			Name string `json:"name"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		p, err := svc.Create(c.Context(), userID(c), req.Name)
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		projects, err := svc.List(c.Context(), userID(c))
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.JSON(projects)
	})

	r.Get("/active", authMiddleware, func(c *fiber.Ctx) error {
		p, err := svc.Active(c.Context(), userID(c))
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		if p == nil {
			return c.Status(fiber.StatusNoContent).Send(nil)
		}
		return c.JSON(p)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		p, err := svc.Get(c.Context(), userID(c), c.Params("id"))
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.JSON(p)
	})

	r.Post("/:id/status", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			Status string `json:"status"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		p, err := svc.SetStatus(c.Context(), userID(c), c.Params("id"), req.Status)
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.JSON(p)
	})

	r.Post("/:id/heartbeat", authMiddleware, func(c *fiber.Ctx) error {
		p, err := svc.Heartbeat(c.Context(), userID(c), c.Params("id"))
		if err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.JSON(p)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), userID(c), c.Params("id")); err != nil {
			return fiber.NewError(apperr.StatusCode(err), err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func userID(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}
