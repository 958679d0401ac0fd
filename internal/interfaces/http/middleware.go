package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
)

const userKey = "auth_user"

// requireUser resolves the bearer token to an active user
func (h *handlers) requireUser(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Error: "Authentication credentials were not provided."})
		return
	}

	user, err := h.deps.Auth.Authenticate(c.Request.Context(), strings.TrimSpace(token))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Error: "Given token not valid for any token type"})
		return
	}

	c.Set(userKey, user)
	c.Next()
}

// requireAdmin checks admin access on every request, so revoked staff
// flags take effect immediately
func (h *handlers) requireAdmin(c *gin.Context) {
	if !currentUser(c).CanAccessAdmin() {
		c.AbortWithStatusJSON(http.StatusForbidden, Response{Error: "您没有权限访问系统，请联系管理员"})
		return
	}
	c.Next()
}

func (h *handlers) requireSuperuser(c *gin.Context) {
	if !currentUser(c).IsSuperuser {
		c.AbortWithStatusJSON(http.StatusForbidden, Response{Error: "只有超级管理员可以管理用户。"})
		return
	}
	c.Next()
}

func currentUser(c *gin.Context) *entity.User {
	if v, ok := c.Get(userKey); ok {
		if u, ok := v.(*entity.User); ok {
			return u
		}
	}
	return &entity.User{}
}

// corsMiddleware adds CORS headers for the browser frontend
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
