package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/config"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	healthHandler *handlers.HealthHandler,
	moderationHandler *handlers.ModerationHandler,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// User endpoints (JWT required)
	api.Post("/reports", middleware.JWTProtected(cfg), moderationHandler.CreateReport)
	api.Post("/moderation/analyze", middleware.JWTProtected(cfg), moderationHandler.AnalyzeText)
	api.Post("/moderation/screen", middleware.JWTProtected(cfg), moderationHandler.ScreenContent)

	// Moderator panel (admin token, or JWT with a moderator role)
	admin := api.Group("/admin", middleware.AdminTokenOrJWT(cfg), middleware.ModeratorRequired(db, cfg))
	admin.Get("/moderation/reports", moderationHandler.ListReports)
	admin.Put("/moderation/reports/:id", moderationHandler.ResolveReport)
	admin.Post("/moderation/reports/:id/apply", moderationHandler.ApplyReport)
	admin.Get("/moderation/scores/:type/:id", moderationHandler.GetScore)
	admin.Post("/moderation/scores/:type/:id/clear", moderationHandler.ClearAutoHide)
	admin.Post("/moderation/scores/:type/:id/reset", moderationHandler.ResetScore)
	admin.Get("/moderation/site-scale", moderationHandler.SiteScale)
	admin.Post("/moderation/trust/:id/recompute", moderationHandler.RecomputeTrust)
}
