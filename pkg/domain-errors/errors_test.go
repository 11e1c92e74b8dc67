package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeNotFound, "party missing")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("matches inner code through wrapping", func(t *testing.T) {
		inner := New(CodeUnmappedBranch, "no route for XX")
		err := Wrap(fmt.Errorf("resolve: %w", inner), CodeInternal, "navigation failed")
		assert.True(t, HasCode(err, CodeInternal))
		assert.True(t, HasCode(err, CodeUnmappedBranch))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})

	t.Run("wrap of nil stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
	})
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ToHTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, ToHTTPStatus(CodeValidation))
	assert.Equal(t, http.StatusUnprocessableEntity, ToHTTPStatus(CodeCollaboratorFailure))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(CodeUnmappedBranch))
	assert.Equal(t, http.StatusSeeOther, ToHTTPStatus(CodeSessionExpired))
}
