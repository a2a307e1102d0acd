package orders

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzeria-platform/internal/auth"
	"pizzeria-platform/internal/logger"
	"pizzeria-platform/internal/models"
)

const handlerTestSecret = "handler-test-secret"

func bearerToken(t *testing.T, f *fixture) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": f.caller.UserID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(handlerTestSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func postOrder(t *testing.T, f *fixture, contentType, authorization string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(f.request())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	handler := NewHandler(f.service, auth.NewVerifier(handlerTestSecret), logger.New("test"))
	rec := httptest.NewRecorder()
	handler.SetupRoutes().ServeHTTP(rec, req)
	return rec
}

func TestPlaceOrderHandler_AcceptsContentTypeWithCharset(t *testing.T) {
	f := newFixture(t, models.RoleCustomer)

	rec := postOrder(t, f, "application/json; charset=utf-8", bearerToken(t, f))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.PlaceOrderResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.OrderNumber)
}

func TestPlaceOrderHandler_RejectsNonJSONContentType(t *testing.T) {
	f := newFixture(t, models.RoleCustomer)

	rec := postOrder(t, f, "text/plain", bearerToken(t, f))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, CodeValidationError, resp.Code)
}

func TestPlaceOrderHandler_MissingAuthorization(t *testing.T) {
	f := newFixture(t, models.RoleCustomer)

	rec := postOrder(t, f, "application/json", "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, CodeAuthFailed, resp.Code)
}
