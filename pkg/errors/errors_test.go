package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errTest = Sentinel(CodeInvalidInput, "scheduled time must be in the future")

func TestSentinelMatching(t *testing.T) {
	t.Run("context copy still matches", func(t *testing.T) {
		err := errTest.WithContext("user", "u1")
		assert.True(t, Is(err, errTest))
		assert.Equal(t, "u1", err.Context[0].Value)
		assert.Empty(t, errTest.Context)
	})

	t.Run("wrapped by fmt", func(t *testing.T) {
		err := fmt.Errorf("create schedule: %w", errTest)
		assert.True(t, Is(err, errTest))
		assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
	})

	t.Run("different message does not match", func(t *testing.T) {
		assert.False(t, Is(WithCode(CodeInvalidInput, "other"), errTest))
	})
}

func TestWrapInheritsCode(t *testing.T) {
	inner := WithCode(CodeTooLarge, "File exceeds 10MB limit.")
	err := Wrap(inner, "upload failed")
	assert.Equal(t, CodeTooLarge, GetCode(err))
	assert.Equal(t, "upload failed", GetMessage(err))
	assert.Equal(t, "upload failed: File exceeds 10MB limit.", err.Error())
	assert.Same(t, inner, Cause(err).(*Error))
}

func TestHTTPStatusDefaults(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(stderrors.New("boom")))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(WrapCode(stderrors.New("dial"), CodeExternal, "backend unavailable")))
	assert.Nil(t, Wrap(nil, "nothing"))
}
