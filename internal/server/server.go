package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/yourorg/pairchat/internal/auth"
	"github.com/yourorg/pairchat/internal/config"
	"github.com/yourorg/pairchat/internal/handlers"
	"github.com/yourorg/pairchat/internal/metrics"
	"github.com/yourorg/pairchat/internal/middleware"
	"github.com/yourorg/pairchat/internal/realtime"
)

type Deps struct {
	Users       *handlers.UserHandler
	Messages    *handlers.MessageHandler
	Gateway     *realtime.Gateway
	Tokens      *auth.Manager
	AuthLimiter *middleware.RateLimiter
}

// New assembles the Fiber app: middleware, REST routes, the websocket
// endpoint and the operational endpoints.
func New(cfg *config.Config, d Deps, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorHandler: errorHandler,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CORSOrigin,
		AllowCredentials: cfg.App.CORSOrigin != "*",
	}))
	app.Use(requestLogger(log))

	app.Get("/v1/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	// Realtime handshake. Authentication is a query-supplied userId; a blank
	// one still upgrades, as an anonymous connection.
	app.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(d.Gateway.HandleWS()))

	protected := auth.Middleware(d.Tokens)
	byIP := func(c *fiber.Ctx) string { return c.IP() }

	api := app.Group("/api/v1")

	users := api.Group("/users")
	users.Post("/signup", d.Users.Signup)
	users.Post("/login", d.AuthLimiter.ByKey(byIP), d.Users.Login)
	users.Post("/logout", protected, d.Users.Logout)
	users.Get("/", protected, d.Users.List)
	users.Get("/search", protected, d.Users.Search)
	users.Get("/me", protected, d.Users.Me)
	users.Patch("/change-password", protected, d.Users.ChangePassword)
	users.Patch("/update-profile", protected, d.Users.UpdateProfile)
	users.Patch("/avatar", protected, d.Users.UpdateAvatar)
	users.Post("/forgot-password", d.AuthLimiter.ByKey(byIP), d.Users.ForgotPassword)
	users.Post("/reset-password/:token", d.Users.ResetPassword)

	messages := api.Group("/messages", protected)
	messages.Post("/send/:id", d.Messages.Send)
	messages.Get("/:id", d.Messages.History)

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func requestLogger(log *zap.SugaredLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Infow("http request",
			"method", c.Method(),
			"path", c.Path(),
			"ip", c.IP(),
			"status", c.Response().StatusCode(),
			"latency", time.Since(start),
		)
		return err
	}
}
