package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const contextKeyUser = "auth.user"

// BearerToken 从 Authorization 头取出令牌
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// Optional 有合法令牌时写入用户，否则放行
func (s *Service) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := BearerToken(c.GetHeader("Authorization")); token != "" {
			if u, err := s.ParseToken(token); err == nil {
				c.Set(contextKeyUser, u)
			}
		}
		c.Next()
	}
}

// Required 无合法令牌时返回 401
func (s *Service) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := s.ParseToken(BearerToken(c.GetHeader("Authorization")))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		c.Set(contextKeyUser, u)
		c.Next()
	}
}

// UserFrom 取中间件写入的用户
func UserFrom(c *gin.Context) (User, bool) {
	v, ok := c.Get(contextKeyUser)
	if !ok {
		return User{}, false
	}
	u, ok := v.(User)
	return u, ok
}
