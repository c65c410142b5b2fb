package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "funneltrack/api/v1"
	"funneltrack/internal/config"
	"funneltrack/internal/http"
	"funneltrack/internal/http/middleware"
)

// publicCORSConfig is the permissive CORS setup shared by the tracking
// endpoints, which are called cross-origin from the marketing pages.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization, Referrer, User-Agent",
}

// MountAppRoutes mounts all application routes using cartridge's route API.
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()

	// Rate limiting only in production; in development and test it would
	// interfere with seeding and integration runs.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// Public ingestion: 70 requests per minute per IP handles legitimate
	// tracking traffic while preventing abuse.
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Stats endpoints are credential-protected; a tighter limit slows down
	// brute force attempts against basic auth.
	statsRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(30),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	db := srv.GetDBManager().GetConnection()
	logger := srv.GetLogger()

	statsConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{
			statsRateLimiter,
			middleware.AdminBasicAuth(db, logger),
		},
	}

	// === HEALTH ===
	srv.Get("/health", http.HealthIndexAction)
	srv.Head("/health", http.HealthIndexAction)

	// === PUBLIC TRACKING API ===
	srv.Post("/api/v1/track", v1.TrackEventHandler, publicAPIConfig)
	srv.Options("/api/v1/track", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, publicAPIConfig)
	srv.Post("/api/v1/track/beacon", v1.TrackEventBeaconHandler, publicAPIConfig)
	srv.Options("/api/v1/track/beacon", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, publicAPIConfig)

	srv.Post("/api/v1/signup", v1.SubmitSignupHandler, publicAPIConfig)
	srv.Options("/api/v1/signup", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, publicAPIConfig)
	srv.Get("/api/v1/email-exists", v1.EmailExistsHandler, publicAPIConfig)
	srv.Get("/api/v1/verify", v1.VerifySignupHandler, publicAPIConfig)

	// === PROTECTED STATS API ===
	srv.Get("/api/v1/stats", http.StatsIndexAction, statsConfig)
	srv.Get("/api/v1/stats/realtime", http.StatsRealtimeAction, statsConfig)
	srv.Get("/api/v1/stats/journeys", http.StatsJourneysAction, statsConfig)
	srv.Get("/api/v1/stats/weekly-report", http.StatsWeeklyReportAction, statsConfig)
}
