package ratelimit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apphttp "prospector_backend/internal/http"
	"prospector_backend/platform/httpkit"
)

// Module exposes the shared registry quota over HTTP, read-only.
type Module struct {
	limiter *Limiter
}

// NewModule wraps a limiter for route registration.
func NewModule(limiter *Limiter) *Module {
	return &Module{limiter: limiter}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "ratelimit"
}

// RegisterRoutes mounts the quota status route under /api/v1.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/ratelimit/status", m.status)
}

// status reports the remaining quota and time to window reset.
// GET /api/v1/ratelimit/status
func (m *Module) status(c *gin.Context) {
	st, err := m.limiter.Status(c.Request.Context())
	if err != nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "rate limiter unavailable", nil)
		return
	}
	httpkit.OK(c, st)
}
