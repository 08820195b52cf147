// Package server assembles the HTTP API.
package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/sudo-init-do/juggle/internal/auth"
	"github.com/sudo-init-do/juggle/internal/config"
	"github.com/sudo-init-do/juggle/internal/fanout"
	"github.com/sudo-init-do/juggle/internal/marketplace"
	"github.com/sudo-init-do/juggle/internal/media"
	"github.com/sudo-init-do/juggle/internal/messaging"
	"github.com/sudo-init-do/juggle/internal/metrics"
	mware "github.com/sudo-init-do/juggle/internal/middleware"
	"github.com/sudo-init-do/juggle/internal/realtime"
	"github.com/sudo-init-do/juggle/internal/user"
	"github.com/sudo-init-do/juggle/internal/utils"
)

// Deps are the long lived pieces the API is built from.
type Deps struct {
	Config *config.Config
	Store  realtime.Store
	Tokens *utils.JWT
	Images media.Blob
	Hub    *messaging.Hub
	// Observer, if set, is told about every fan-out write.
	Observer fanout.Observer
}

// New wires services, handlers and routes onto a fresh echo instance.
func New(d Deps) (*echo.Echo, error) {
	mode, err := fanout.ParseMode(d.Config.FanoutMode)
	if err != nil {
		return nil, err
	}
	var opts []fanout.Option
	if d.Observer != nil {
		opts = append(opts, fanout.WithObserver(d.Observer))
	}
	writer := fanout.NewWriter(d.Store, mode, opts...)
	hub := d.Hub
	if hub == nil {
		hub = messaging.NewHub()
	}

	market := marketplace.NewService(d.Store, writer)
	authH := auth.NewHandler(auth.NewService(d.Store, d.Tokens))
	marketH := marketplace.NewHandler(market)
	msgH := messaging.NewHandler(messaging.NewService(d.Store, writer, hub))
	userH := user.NewHandler(user.NewService(d.Store, market, media.NewService(d.Images, d.Config.MaxImageBytes)))

	e := echo.New()
	e.HideBanner = true

	// Basic middleware
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(metrics.Middleware())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if p, ok := d.Store.(realtime.Pinger); ok {
			if err := p.Ping(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "store unreachable"})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	requireAuth := mware.JWTMiddleware(d.Tokens)

	// Auth routes with per-IP rate limiting to protect signup/login from abuse
	authGroup := e.Group("/auth")
	limiter := middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(d.Config.AuthRateLimit)))
	authGroup.POST("/signup", authH.Signup, limiter)
	authGroup.POST("/login", authH.Login, limiter)
	authGroup.GET("/me", authH.Me, requireAuth)
	authGroup.PUT("/password", authH.ChangePassword, requireAuth)

	// Users
	e.GET("/users/:id", userH.GetPublicProfile)
	e.PATCH("/users/me", userH.UpdateProfile, requireAuth)
	e.PUT("/users/me/fcm-token", userH.UpdateFCMToken, requireAuth)
	e.POST("/users/me/profile-image", userH.UploadProfileImage, requireAuth)

	// Tasks
	e.GET("/categories", marketH.Categories)
	e.GET("/tasks", marketH.ListTasks)
	e.GET("/tasks/:owner/:id", marketH.GetTask)
	e.GET("/users/:id/tasks", marketH.ListUserTasks)
	e.POST("/tasks", marketH.CreateTask, requireAuth)
	e.DELETE("/tasks/:owner/:id", marketH.DeleteTask, requireAuth)

	// Reviews
	e.GET("/users/:id/reviews", marketH.GetUserReviews)
	e.POST("/users/:id/reviews", marketH.CreateReview, requireAuth)

	// Messaging
	e.POST("/messages", msgH.SendMessage, requireAuth)
	e.GET("/messages/inbox", msgH.Inbox, requireAuth)
	e.GET("/messages/ws", hub.Stream, mware.QueryTokenMiddleware(d.Tokens))
	e.GET("/messages/:partner", msgH.ChatLog, requireAuth)
	e.DELETE("/conversations/:partner", msgH.DeleteConversation, requireAuth)

	return e, nil
}
