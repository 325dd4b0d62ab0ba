package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	ctxUserID    = "alora.user_id"
	ctxUserEmail = "alora.user_email"

	ClientIDHeader = "X-Client-ID"
)

// Claims 身份服务签发的访问令牌
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Identity 解析 Bearer JWT，写入当前用户；令牌缺失或无效时按匿名处理
func Identity(secret string, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	key := []byte(secret)
	return func(c *gin.Context) {
		raw := bearer(c.GetHeader("Authorization"))
		if raw == "" && c.IsWebsocket() {
			// 浏览器的 WebSocket 无法带 Authorization 头
			raw = c.Query("access_token")
		}
		if raw == "" || len(key) == 0 {
			c.Next()
			return
		}
		var claims Claims
		_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return key, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
		if err != nil {
			log.Debug("ignore invalid access token", zap.Error(err))
			c.Next()
			return
		}
		if claims.Subject != "" {
			c.Set(ctxUserID, claims.Subject)
			c.Set(ctxUserEmail, claims.Email)
		}
		c.Next()
	}
}

func bearer(h string) string {
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// UserID 匿名时返回空串
func UserID(c *gin.Context) string { return c.GetString(ctxUserID) }

func UserEmail(c *gin.Context) string { return c.GetString(ctxUserEmail) }

// ClientID 匿名浏览器用 X-Client-ID 区分会话
func ClientID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(ClientIDHeader)); id != "" {
		return id
	}
	return c.Query("client_id")
}

// SetIdentity 测试与内部调用注入身份
func SetIdentity(c *gin.Context, userID, email string) {
	c.Set(ctxUserID, userID)
	c.Set(ctxUserEmail, email)
}
