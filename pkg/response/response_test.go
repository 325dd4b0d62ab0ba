package response

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"Alora/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func call(fn func(c *gin.Context)) (*httptest.ResponseRecorder, Envelope) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fn(c)
	var env Envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestSuccess(t *testing.T) {
	w, env := call(func(c *gin.Context) { Success(c, gin.H{"n": 1}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.OK)
	assert.JSONEq(t, `{"ok":true,"data":{"n":1}}`, w.Body.String())
}

func TestFail(t *testing.T) {
	t.Run("coded error keeps message", func(t *testing.T) {
		w, env := call(func(c *gin.Context) {
			Fail(c, errors.Wrap(errors.Sentinel(errors.CodeTooLarge, "File exceeds 10MB limit."), "File exceeds 10MB limit."))
		})
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.False(t, env.OK)
		assert.Equal(t, "File exceeds 10MB limit.", env.Error)
	})

	t.Run("plain error is hidden", func(t *testing.T) {
		w, env := call(func(c *gin.Context) { Fail(c, stderrors.New("dial tcp 10.0.0.1:5432: refused")) })
		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Internal Server Error", env.Error)
	})
}
