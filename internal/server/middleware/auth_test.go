package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTokenValidator is a test implementation of TokenValidator for unit tests.
type testTokenValidator struct {
	validTokens map[string]string
}

func newTestTokenValidator() *testTokenValidator {
	return &testTokenValidator{
		validTokens: make(map[string]string),
	}
}

func (v *testTokenValidator) addValidToken(token, operator string) {
	v.validTokens[token] = operator
}

func (v *testTokenValidator) ValidateToken(tokenString string) (OperatorGetter, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token string is empty")
	}
	operator, ok := v.validTokens[tokenString]
	if !ok {
		return nil, fmt.Errorf("invalid token")
	}
	return &testClaims{operator: operator}, nil
}

type testClaims struct {
	operator string
}

func (c *testClaims) GetOperator() string {
	return c.operator
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	jwtService := newTestTokenValidator()

	token := "valid-test-token-123"
	jwtService.addValidToken(token, "ops")

	handlerCalled := false
	var contextOperator string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		operator, err := GetOperator(r)
		require.NoError(t, err)
		contextOperator = operator
		w.WriteHeader(http.StatusOK)
	})

	middleware := AuthMiddleware(jwtService)
	wrappedHandler := middleware(handler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.True(t, handlerCalled, "handler should be called")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops", contextOperator)
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	jwtService := newTestTokenValidator()

	handlerCalled := false
	handler := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		handlerCalled = true
	})

	middleware := AuthMiddleware(jwtService)
	wrappedHandler := middleware(handler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.False(t, handlerCalled, "handler should not be called")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_MalformedHeader(t *testing.T) {
	jwtService := newTestTokenValidator()
	jwtService.addValidToken("good-token", "ops")

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "good-token"},
		{"wrong scheme", "Basic good-token"},
		{"bearer without token", "Bearer"},
		{"too many parts", "Bearer good-token extra"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			handler := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
				handlerCalled = true
			})

			wrappedHandler := AuthMiddleware(jwtService)(handler)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("Authorization", tt.header)
			w := httptest.NewRecorder()

			wrappedHandler.ServeHTTP(w, req)

			assert.False(t, handlerCalled)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	jwtService := newTestTokenValidator()
	jwtService.addValidToken("good-token", "ops")

	handlerCalled := false
	handler := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		handlerCalled = true
	})

	wrappedHandler := AuthMiddleware(jwtService)(handler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.False(t, handlerCalled)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_CaseInsensitiveBearer(t *testing.T) {
	jwtService := newTestTokenValidator()
	jwtService.addValidToken("good-token", "ops")

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrappedHandler := AuthMiddleware(jwtService)(handler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "bearer good-token")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetOperator_MissingFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	_, err := GetOperator(req)
	assert.Error(t, err)
}

func TestGetOperator_PresentInContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), OperatorKey(), "ops")
	req = req.WithContext(ctx)

	operator, err := GetOperator(req)
	require.NoError(t, err)
	assert.Equal(t, "ops", operator)
}
