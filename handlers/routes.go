// handlers/routes.go
package handlers

import (
	"context"
	"strings"
	"time"

	"lore-machine/config"
	"lore-machine/middleware"
	"lore-machine/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services is everything the HTTP surface dispatches to.
type Services struct {
	Users         middleware.UserDirectory
	DB            Pinger
	Submission    *services.SubmissionService
	Voting        *services.VotingService
	Stories       *services.StoryService
	Claims        *services.ClaimService
	Royalties     *services.RoyaltyService
	Rituals       *services.RitualService
	Mint          *services.MintService
	Profile       *services.ProfileService
	Notifications *services.NotificationService
}

// NewApp builds the fiber app with the global middleware and every route.
func NewApp(cfg *config.Config, svc Services, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "lore-machine",
		BodyLimit: 1 * 1024 * 1024,
	})

	app.Use(recover.New())

	// health stays reachable for the orchestrator without a gateway token
	SetupHealthRoutes(app, svc.DB)

	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken, log))

	if len(cfg.AllowedOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
			AllowMethods:     "GET,POST,OPTIONS",
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-FID, X-Username, X-User-Roles",
			AllowCredentials: true,
			MaxAge:           86400,
		}))
	}

	secured := middleware.UserContextMiddleware(svc.Users, log)
	optional := middleware.OptionalUserContext(svc.Users, log)
	admin := []fiber.Handler{secured, middleware.RequireRole("admin")}

	SetupStoryRoutes(app, svc, secured)
	SetupRewardRoutes(app, svc, secured)
	SetupRitualRoutes(app, svc, secured, optional)
	SetupAdminRoutes(app, svc, admin)
	return app
}

func SetupHealthRoutes(app *fiber.App, db Pinger) {
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":   "degraded",
				"database": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
}

func SetupStoryRoutes(app *fiber.App, svc Services, secured fiber.Handler) {
	// 🔓 Public
	app.Get("/stories", svc.Stories.ListStories)
	app.Get("/stories/:id/metadata", svc.Stories.GetStoryMetadata)

	// 🔐 Authenticated
	app.Post("/submit", secured, svc.Submission.SubmitLine)
	app.Post("/vote", secured, svc.Voting.CastVote)
	app.Post("/nft/mint", secured, svc.Mint.MintNFT)
	app.Post("/notifications/cast", secured, svc.Notifications.PublishCast)
}

func SetupRewardRoutes(app *fiber.App, svc Services, secured fiber.Handler) {
	app.Get("/profile", secured, svc.Profile.GetProfile)
	app.Get("/users/search", svc.Profile.SearchUsers)

	app.Get("/claims", secured, svc.Claims.ListClaims)
	app.Get("/claims/stream", secured, svc.Claims.StreamClaimsSSE)
	app.Post("/claims/sync", secured, svc.Claims.SyncMyClaims)
	app.Post("/claim/batch", secured, svc.Claims.BatchClaim)

	app.Get("/royalties/history", secured, svc.Royalties.GetRoyaltyHistory)
}

func SetupRitualRoutes(app *fiber.App, svc Services, secured, optional fiber.Handler) {
	app.Get("/rituals/daily-prompt", optional, svc.Rituals.GetDailyPrompt)
	app.Get("/rituals/weekly-challenge", svc.Rituals.GetWeeklyChallenge)
	app.Post("/rituals/weekly-challenge", secured, svc.Rituals.SubmitWeeklyChallenge)
}

func SetupAdminRoutes(app *fiber.App, svc Services, admin []fiber.Handler) {
	// 🔒 Admin-only routes
	group := app.Group("/admin", admin...)
	group.Post("/claims/sync-all", svc.Claims.SyncAllClaims)
	group.Post("/claims/merkle", svc.Claims.RebuildMerkle)
	group.Post("/claims/:id/settle", svc.Claims.SettleClaim)
	group.Post("/rituals/weekly-challenge", svc.Rituals.CreateWeeklyChallenge)
	group.Post("/rituals/weekly-challenge/:id/winner", svc.Rituals.SelectChallengeWinner)

	// sale reports write the royalty ledger of every holder
	distribute := append(append([]fiber.Handler{}, admin...), svc.Royalties.DistributeRoyalties)
	app.Post("/royalties/distribute", distribute...)
}
