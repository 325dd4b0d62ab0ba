package response

import (
	"net/http"

	"Alora/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Envelope 所有 JSON 接口统一的返回结构
type Envelope struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{OK: true, Data: data})
}

// Status 非 200 的成功响应，比如 202
func Status(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{OK: true, Data: data})
}

// Fail 状态码取自错误链；未带码的错误一律 500 且不暴露原始信息
func Fail(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	msg := errors.GetMessage(err)
	if errors.GetCode(err) == 0 {
		msg = http.StatusText(http.StatusInternalServerError)
	}
	c.AbortWithStatusJSON(status, Envelope{Error: msg})
}

func FailWith(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Envelope{Error: msg})
}
