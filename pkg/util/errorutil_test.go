package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewAccessDenied())

	assert.True(t, errors.Is(err, ErrAccessDenied))
	assert.False(t, errors.Is(err, ErrInvalidCredentials))
}

func TestToDomainErrorCollapsesUnknownErrors(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:6379: connection refused")

	de := ToDomainError(cause)
	require.NotNil(t, de)
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Equal(t, "internal server error", de.Message)
	assert.ErrorIs(t, de, cause)
}

func TestToDomainErrorKeepsDomainErrors(t *testing.T) {
	de := ToDomainError(NewDuplicateUsername())
	assert.Equal(t, CodeDuplicateUsername, de.Code)
	assert.Equal(t, http.StatusConflict, de.HTTPStatus)
}

func TestMergedCausesShareMessage(t *testing.T) {
	a := ToDomainError(NewInvalidCredentials())
	b := ToDomainError(NewInvalidCredentials())
	assert.Equal(t, a.Message, b.Message)

	c := ToDomainError(NewAccessDenied())
	d := ToDomainError(NewAccessDenied())
	assert.Equal(t, c.Message, d.Message)
}

func TestMapError(t *testing.T) {
	assert.NoError(t, MapError(nil))
	assert.Nil(t, ToDomainError(nil))

	forbidden := NewForbidden("nope")
	assert.Same(t, forbidden, MapError(forbidden))

	raw := MapError(errors.New("connection reset by peer"))
	var de *DomainError
	require.ErrorAs(t, raw, &de)
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, "internal server error", de.Message)
}

func TestToDomainErrorKeepsFrameworkClientErrors(t *testing.T) {
	de := ToDomainError(fiber.NewError(http.StatusNotFound, "Cannot GET /nope"))
	assert.Equal(t, CodeNotFound, de.Code)
	assert.Equal(t, http.StatusNotFound, de.HTTPStatus)

	de = ToDomainError(fiber.ErrRequestEntityTooLarge)
	assert.Equal(t, CodeValidationFailed, de.Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, de.HTTPStatus)

	de = ToDomainError(fiber.ErrServiceUnavailable)
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, "internal server error", de.Message)
}
