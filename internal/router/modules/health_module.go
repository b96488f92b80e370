package modules

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/ailens-auth/pkg/response"
)

// HealthCheck pings one backing service.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthModule struct {
	Checks []HealthCheck
}

func NewHealthModule(checks ...HealthCheck) *HealthModule {
	return &HealthModule{Checks: checks}
}

func (m *HealthModule) Register(rg *gin.RouterGroup) {
	rg.GET("/healthz", m.handle)
}

func (m *HealthModule) handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := make(map[string]string, len(m.Checks))
	failed := map[string]string{}
	for _, chk := range m.Checks {
		if err := chk.Ping(ctx); err != nil {
			status[chk.Name] = "down"
			failed[chk.Name] = err.Error()
			continue
		}
		status[chk.Name] = "up"
	}
	if len(failed) > 0 {
		response.Fail(c, http.StatusServiceUnavailable, "unavailable", "dependency check failed", failed)
		return
	}
	response.Success(c, http.StatusOK, status, "ok", nil)
}
