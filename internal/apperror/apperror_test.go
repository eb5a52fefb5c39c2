package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrappedErrorKeepsKindAndReason(t *testing.T) {
	base := Validation(ReasonLetterAlreadyUsed, "letter %q already used", "ب")
	wrapped := fmt.Errorf("select letter: %w", base)

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindValidation, e.Kind)
	assert.Equal(t, ReasonLetterAlreadyUsed, ReasonOf(wrapped))
	assert.True(t, errors.Is(wrapped, Validation(ReasonLetterAlreadyUsed, "")))
	assert.False(t, errors.Is(wrapped, Conflict(ReasonLetterAlreadyUsed, "")))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Validation(ReasonNegativeTime, "x")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound(ReasonSessionNotFound, "x")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(Conflict(ReasonPurchaseOpen, "x")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestWrapCarriesCause(t *testing.T) {
	cause := errors.New("unique violation")
	err := Wrap(cause, KindConflict, ReasonLinkCollision)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "unique violation")
	assert.Equal(t, Kind(""), KindOf(cause))
}
