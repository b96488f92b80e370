package modules

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestHealthModule(t *testing.T) {
	gin.SetMode(gin.TestMode)
	up := HealthCheck{Name: "postgres", Ping: func(context.Context) error { return nil }}
	down := HealthCheck{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }}

	for _, tc := range []struct {
		name   string
		checks []HealthCheck
		want   int
	}{
		{"no checks", nil, http.StatusOK},
		{"all up", []HealthCheck{up}, http.StatusOK},
		{"one down", []HealthCheck{up, down}, http.StatusServiceUnavailable},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			NewHealthModule(tc.checks...).Register(&r.RouterGroup)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, tc.want, w.Code)
			if tc.want != http.StatusOK {
				assert.Contains(t, w.Body.String(), "connection refused")
			}
		})
	}
}
