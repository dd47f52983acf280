package usecase

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPError_CodeFromStatus(t *testing.T) {
	cases := map[int]ErrorCode{
		http.StatusUnauthorized:        CodeNotAuthenticated,
		http.StatusForbidden:           CodeForbidden,
		http.StatusNotFound:            CodeNotFound,
		http.StatusBadRequest:          CodeInvalidInput,
		http.StatusInternalServerError: CodeInternal,
	}
	for status, code := range cases {
		he, ok := AsHTTPError(NewHTTPError(status, "x"))
		require.True(t, ok)
		assert.Equal(t, code, he.Code, "status %d", status)
	}
}

func TestToHTTPError_HidesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := toHTTPError(fmt.Errorf("wrapped: %w", cause))

	he, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, he.Status)
	assert.Equal(t, "db error", he.Message)
	assert.ErrorIs(t, err, cause)

	//HTTPErrorはそのまま通す
	he, ok = AsHTTPError(toHTTPError(errCartNotFound()))
	require.True(t, ok)
	assert.Equal(t, CodeCartNotFound, he.Code)
	assert.Nil(t, toHTTPError(nil))
}

func TestErrInsufficientStock_ClampsAvailable(t *testing.T) {
	he, ok := AsHTTPError(errInsufficientStock(4, -2))
	require.True(t, ok)
	assert.Equal(t, &StockShortage{Requested: 4, Available: 0}, he.Stock)
}
