package httpapi

import (
	"voice-outreach/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register mounts the operator API on an already authenticated group.
func (h Handlers) Register(v1 *gin.RouterGroup) {
	v1.GET("/me", h.Me)

	admin := v1.Group("/admin")
	admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
	{
		admin.POST("/tokens", h.IssueToken)
	}

	campaigns := v1.Group("/campaigns/:id")
	{
		read := rbac.RequireAnyRole(rbac.RoleViewer, rbac.RoleOperator)
		write := rbac.RequireAnyRole(rbac.RoleOperator)

		campaigns.GET("/stats", read, h.Stats)
		campaigns.POST("/dispatch", rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleScheduler), h.Dispatch)
		campaigns.POST("/screen", rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleScheduler), h.Screen)
		campaigns.POST("/completion-check", rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleScheduler), h.CompletionCheck)
		campaigns.POST("/pause", write, h.Pause)
		campaigns.POST("/resume", write, h.Resume)
	}
}
