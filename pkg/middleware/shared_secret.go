package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SharedSecret 校验定时任务等内部调用：请求头带密钥，或者用密钥做 HMAC 签名；secret 为空时直接拒绝
func SharedSecret(header, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret != "" {
			if got := c.GetHeader(header); got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1 {
				c.Next()
				return
			}
			if verifySignature(c, secret, DefaultSignatureSkew, time.Now()) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "Unauthorized"})
	}
}
