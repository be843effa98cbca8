package storage

import (
	"context"
	"strings"
	"time"

	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/db"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Service registers upload URLs for survey photos. The blob store itself is
// external; clients upload there directly and register the result here.
type Service struct {
	db      db.Querier
	baseURL string
}

func NewService(q db.Querier, baseURL string) *Service {
	if baseURL == "" {
		baseURL = "https://storage.example"
	}
	return &Service{db: q, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *Service) SaveObject(ctx context.Context, userID, url, kind string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO storage_objects (id, user_id, url, kind)
		VALUES ($1,$2,$3,$4)
	`, id, userID, url, kind)
	if err != nil {
		return "", err
	}
	return id, nil
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/upload", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			FileName string `json:"file_name"`
			Kind     string `json:"kind"`
		}
		_ = c.BodyParser(&body)
		if body.FileName == "" {
			body.FileName = "upload"
		}
		uid, _ := c.Locals("user_id").(string)
		url := svc.baseURL + "/" + body.FileName
		id, err := svc.SaveObject(c.Context(), uid, url, body.Kind)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{
			"id":         id,
			"url":        url,
			"expires_at": time.Now().Add(15 * time.Minute),
		})
	})
}
