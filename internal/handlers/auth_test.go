package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/cabtrips/internal/backend"
	"github.com/ukydev/cabtrips/internal/middleware"
	"github.com/ukydev/cabtrips/internal/models"
	"github.com/ukydev/cabtrips/internal/session"
)

func newAuthRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAuthHandler_Login(t *testing.T) {
	backendMock := new(MockAuthBackend)
	sessions := new(MockSessions)
	handler := NewAuthHandler(backendMock, sessions)

	user := models.User{Username: "ravi", FirstName: "Ravi", Role: models.RoleDriver}
	loginReq := models.LoginRequest{Username: "ravi", Password: "password123"}
	backendMock.On("Login", mock.Anything, loginReq).
		Return(&models.LoginResponse{Token: "jwt-token", User: user}, nil)
	sessions.On("Open", mock.Anything, "jwt-token", user).
		Return(&session.Session{ID: "sess-1", Token: "jwt-token", Username: "ravi", Role: models.RoleDriver}, nil)

	rec := httptest.NewRecorder()
	handler.Login(rec, newAuthRequest(t, http.MethodPost, "/api/auth/login", models.LoginRequest{Username: "  ravi ", Password: "password123"}))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "sess-1", resp.Token)
	assert.Equal(t, "ravi", resp.User.Username)
	backendMock.AssertExpectations(t)
	sessions.AssertExpectations(t)
}

func TestAuthHandler_LoginErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		backendErr error
		status     int
	}{
		{"invalid JSON", "not-an-object", nil, http.StatusBadRequest},
		{"missing fields", models.LoginRequest{}, nil, http.StatusBadRequest},
		{"bad credentials", models.LoginRequest{Username: "ravi", Password: "wrong-password"}, &backend.APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"}, http.StatusUnauthorized},
		{"backend down", models.LoginRequest{Username: "ravi", Password: "password123"}, &backend.APIError{StatusCode: http.StatusServiceUnavailable}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backendMock := new(MockAuthBackend)
			if tt.backendErr != nil {
				backendMock.On("Login", mock.Anything, mock.Anything).Return(nil, tt.backendErr)
			}
			handler := NewAuthHandler(backendMock, new(MockSessions))

			rec := httptest.NewRecorder()
			handler.Login(rec, newAuthRequest(t, http.MethodPost, "/api/auth/login", tt.body))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestAuthHandler_LoginValidationFields(t *testing.T) {
	handler := NewAuthHandler(new(MockAuthBackend), new(MockSessions))

	rec := httptest.NewRecorder()
	handler.Login(rec, newAuthRequest(t, http.MethodPost, "/api/auth/login", models.LoginRequest{Username: "ravi"}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "validation failed", resp.Error)
	assert.Contains(t, resp.Fields, "password")
	assert.NotContains(t, resp.Fields, "username")
}

func TestAuthHandler_Register(t *testing.T) {
	backendMock := new(MockAuthBackend)
	sessions := new(MockSessions)
	handler := NewAuthHandler(backendMock, sessions)

	req := models.RegisterRequest{
		Username:  "asha",
		Email:     "asha@example.com",
		Password:  "password123",
		FirstName: "Asha",
		LastName:  "Rao",
		Phone:     "98765 43210",
		Role:      models.RoleCustomer,
	}
	user := models.User{Username: "asha", Email: req.Email, Role: models.RoleCustomer}
	backendMock.On("Register", mock.Anything, req).
		Return(&models.LoginResponse{Token: "jwt-token", User: user}, nil)
	sessions.On("Open", mock.Anything, "jwt-token", user).
		Return(&session.Session{ID: "sess-2", Role: models.RoleCustomer}, nil)

	rec := httptest.NewRecorder()
	handler.Register(rec, newAuthRequest(t, http.MethodPost, "/api/auth/register", req))

	assert.Equal(t, http.StatusCreated, rec.Code)
	backendMock.AssertExpectations(t)
}

func TestAuthHandler_RegisterRejectsAdmin(t *testing.T) {
	backendMock := new(MockAuthBackend)
	handler := NewAuthHandler(backendMock, new(MockSessions))

	rec := httptest.NewRecorder()
	handler.Register(rec, newAuthRequest(t, http.MethodPost, "/api/auth/register", models.RegisterRequest{
		Username:  "boss",
		Email:     "boss@example.com",
		Password:  "password123",
		FirstName: "Boss",
		Role:      models.RoleAdmin,
	}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Fields, "role")
	backendMock.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestAuthHandler_LogoutAndMe(t *testing.T) {
	sessions := new(MockSessions)
	handler := NewAuthHandler(new(MockAuthBackend), sessions)
	s := &session.Session{ID: "sess-3", UserID: "u1", Username: "ravi", Name: "Ravi Kumar", Role: models.RoleDriver}
	sessions.On("Invalidate", mock.Anything, "sess-3").Return(nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	handler.Me(rec, req.WithContext(middleware.WithSession(context.Background(), s)))
	require.Equal(t, http.StatusOK, rec.Code)
	var me MeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	assert.Equal(t, MeResponse{UserID: "u1", Username: "ravi", Name: "Ravi Kumar", Role: models.RoleDriver}, me)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	handler.Logout(rec, req.WithContext(middleware.WithSession(context.Background(), s)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	sessions.AssertExpectations(t)

	rec = httptest.NewRecorder()
	handler.Logout(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(nil)
	rec := api.do(t, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}
