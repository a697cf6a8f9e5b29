package middlewares

import (
	"net/http"

	"bitbucket.org/mmdatafocus/rentroll_backend/models"
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	"bitbucket.org/mmdatafocus/rentroll_backend/workflow"
	"github.com/gin-gonic/gin"
)

// RoleGuard resolves the authenticated principal to a user document of the
// expected role and puts the resolved id on the context. Routes behind it
// can trust utils.GetResolvedUserIdFromContext. Every denial is a plain 403;
// the reason stays in the server logs.
func RoleGuard(role models.Role) gin.HandlerFunc {
	dir := workflow.NewPrincipalDirectory()

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		uid, ok := utils.GetPrincipalUIDFromContext(ctx)
		if !ok || uid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		email, _ := utils.GetPrincipalEmailFromContext(ctx)

		resolution, err := workflow.ResolvePrincipal(ctx, dir, uid, email, role)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			c.Abort()
			return
		}

		ctx = utils.SetResolvedUserIdInContext(ctx, resolution.UserID)
		ctx = utils.SetRoleInContext(ctx, string(role))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
