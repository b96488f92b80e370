package router

import (
	"context"

	"github.com/oksasatya/ailens-auth/internal/container"
	handlers "github.com/oksasatya/ailens-auth/internal/interface/http"
	"github.com/oksasatya/ailens-auth/internal/router/modules"
)

// InitModules builds the feature modules from the container and adds them to r.
// Call once at startup, after the container is populated.
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	logger := container.GetLogger()

	h := handlers.NewAuthHandler(container.GetService(), logger)
	r.Add(&modules.AuthModule{
		Handler:     h,
		Tokens:      container.GetJWT(),
		Revocations: container.GetRevoker(),
		Redis:       container.GetRedis(),
		Limit:       cfg.RateLimitMax,
		Window:      cfg.RateLimitWindow,
		Logger:      logger,
	})

	var checks []modules.HealthCheck
	if pool := container.GetPGPool(); pool != nil {
		checks = append(checks, modules.HealthCheck{Name: "postgres", Ping: pool.Ping})
	}
	if rdb := container.GetRedis(); rdb != nil {
		checks = append(checks, modules.HealthCheck{Name: "redis", Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	r.Add(modules.NewHealthModule(checks...))

	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(container.GetRedis()))
	}
}
