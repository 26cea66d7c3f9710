package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "neighborly/pkg/errors"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestErrorRendersAlreadyTakenAsInformational(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

	require.NoError(t, Error(c, apperrors.RequestAlreadyTaken()))

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, apperrors.CodeRequestAlreadyTaken, resp.Error.Code)
	assert.Equal(t, apperrors.SeverityInfo, resp.Error.Severity)
	assert.False(t, resp.Error.Retryable)
}

func TestErrorMarksDependencyUnavailableRetryable(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, Error(c, apperrors.DependencyUnavailable("store unreachable", nil)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, decode(t, rec).Error.Retryable)
}

func TestMutatedCarriesAppliedAndVersion(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

	require.NoError(t, Mutated(c, true, 3, map[string]string{"id": "r1"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"applied":true`)
	assert.Contains(t, rec.Body.String(), `"version":3`)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	require.NoError(t, Mutated(c, false, 3, nil))
	assert.Contains(t, rec.Body.String(), `"applied":false`)
}

func TestErrorUnknownIsInternal(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, Error(c, assert.AnError))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apperrors.CodeInternal, decode(t, rec).Error.Code)
}
