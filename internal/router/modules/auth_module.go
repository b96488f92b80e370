package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	handlers "github.com/oksasatya/ailens-auth/internal/interface/http"
	"github.com/oksasatya/ailens-auth/internal/interface/middleware"
)

// AuthModule mounts the /auth routes.
// Public: register, verify-otp, resend-otp, login, google
// Protected: me, activity, logout
type AuthModule struct {
	Handler     *handlers.AuthHandler
	Tokens      middleware.TokenValidator
	Revocations middleware.Revocations
	Redis       *redis.Client
	Limit       int
	Window      time.Duration
	Logger      *logrus.Logger
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	g := rg.Group("/auth")

	// Public with per-IP, per-route limits
	limiter := middleware.RateLimit(m.Redis, m.Limit, m.Window, middleware.KeyByIPAndPath(), nil)
	g.POST("/register", limiter, m.Handler.Register)
	g.POST("/verify-otp", limiter, m.Handler.VerifyOTP)
	g.POST("/resend-otp", limiter, m.Handler.ResendOTP)
	g.POST("/login", limiter, m.Handler.Login)
	g.POST("/google", limiter, m.Handler.Google)

	// Protected
	auth := g.Group("")
	auth.Use(middleware.Auth(m.Tokens, m.Revocations, m.Logger))
	auth.Use(middleware.RateLimit(m.Redis, 120, time.Minute, middleware.KeyByAccountID(), nil))
	{
		auth.GET("/me", m.Handler.Me)
		auth.GET("/activity", m.Handler.Activity)
		auth.POST("/logout", m.Handler.Logout)
	}
}
