package server

import (
	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/auth"
	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/config"
	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/project"
	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/storage"
	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/stream"
	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/track"
	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/waypoint"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Stream   *stream.Hub
	Projects *project.Service
	Monitor  *project.Monitor
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	projects := project.NewService(db, cfg.InactivityThreshold)

	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       db,
		Redis:    redisClient,
		Stream:   stream.NewHub(redisClient),
		Projects: projects,
		Monitor:  project.NewMonitor(projects, cfg.AutoPauseInterval),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB, s.Redis, nil, s.Cfg.OTPTTL))
	project.RegisterRoutes(s.App.Group("/projects"), s.Projects, jwtMiddleware)
	track.RegisterRoutes(s.App.Group("/tracks"), track.NewService(s.DB, s.Stream, s.Projects, s.Cfg.MaxPointBatch), jwtMiddleware)
	waypoint.RegisterRoutes(s.App.Group("/waypoints"), waypoint.NewService(s.DB, s.Projects), jwtMiddleware)
	storage.RegisterRoutes(s.App.Group("/storage"), storage.NewService(s.DB, s.Cfg.StorageBaseURL), jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
