package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	jwtlib "wxrelay/tools/security"
)

// CtxOpenIDKey 认证通过后写入 gin context 的 openid key
const CtxOpenIDKey = "openId"

// Middleware Bearer 令牌校验，通过后把 openid 放进 context。
func Middleware(opts jwtlib.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token = strings.TrimSpace(authz[len("bearer "):])
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing token"})
			return
		}

		openID, err := jwtlib.Verify(opts, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}

		c.Set(CtxOpenIDKey, openID)
		c.Next()
	}
}

// OpenIDFrom 取出认证中间件写入的 openid。
func OpenIDFrom(c *gin.Context) string {
	v, _ := c.Get(CtxOpenIDKey)
	s, _ := v.(string)
	return s
}
