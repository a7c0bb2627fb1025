package main

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/cabtrips/internal/backend"
	"github.com/ukydev/cabtrips/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoginResponse), args.Error(1)
}

func (m *MockBackend) Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoginResponse), args.Error(1)
}

func (m *MockBackend) BookTrip(ctx context.Context, token string, req models.BookRequest) (map[string]any, error) {
	args := m.Called(ctx, token, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

func (m *MockBackend) UpdateTripStatus(ctx context.Context, token, tripID, action string) (*models.StatusUpdate, error) {
	args := m.Called(ctx, token, tripID, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StatusUpdate), args.Error(1)
}

func (m *MockBackend) RateTrip(ctx context.Context, token, tripID string, rating float64) error {
	return m.Called(ctx, token, tripID, rating).Error(0)
}

func account(token string, role models.Role) *models.LoginResponse {
	return &models.LoginResponse{
		Token: token,
		User:  models.User{ID: primitive.NewObjectID(), Username: token, FirstName: "Seed", Role: role},
	}
}

func TestAccount_LoginSucceeds(t *testing.T) {
	b := new(MockBackend)
	b.On("Login", mock.Anything, models.LoginRequest{Username: "asha", Password: "pw-12345"}).
		Return(account("cust", models.RoleCustomer), nil)

	s := newSeeder(b, "pw-12345", 1)
	resp, err := s.account(context.Background(), "asha", models.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, "cust", resp.Token)
	b.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestAccount_RegistersUnknownUser(t *testing.T) {
	b := new(MockBackend)
	b.On("Login", mock.Anything, mock.Anything).
		Return(nil, &backend.APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"})
	b.On("Register", mock.Anything, mock.MatchedBy(func(req models.RegisterRequest) bool {
		return req.Username == "asha_driver" && req.Role == models.RoleDriver &&
			req.FirstName == "Asha_driver" && req.Email == "asha_driver@seed.cabtrips.dev"
	})).Return(account("drv", models.RoleDriver), nil)

	s := newSeeder(b, "pw-12345", 1)
	resp, err := s.account(context.Background(), "asha_driver", models.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, "drv", resp.Token)
	b.AssertExpectations(t)
}

func TestAccount_BackendDown(t *testing.T) {
	b := new(MockBackend)
	b.On("Login", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	s := newSeeder(b, "pw-12345", 1)
	_, err := s.account(context.Background(), "asha", models.RoleCustomer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	b.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestPickOutcome_CoversEveryStatus(t *testing.T) {
	s := newSeeder(new(MockBackend), "pw", 42)
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		seen[s.pickOutcome().status] = true
	}
	for _, o := range outcomes {
		assert.True(t, seen[o.status], o.status)
	}
}

func TestSeed_AdvancesTrips(t *testing.T) {
	b := new(MockBackend)
	customer := account("cust", models.RoleCustomer)
	driver := account("drv", models.RoleDriver)
	b.On("BookTrip", mock.Anything, "cust", mock.MatchedBy(func(req models.BookRequest) bool {
		return req.CustomerID == customer.User.ID.Hex() && req.DistanceInKm > 0
	})).Return(map[string]any{"tripBookingId": "TB00000001"}, nil)
	b.On("UpdateTripStatus", mock.Anything, "drv", "TB00000001", mock.Anything).
		Return(&models.StatusUpdate{TripBookingID: "TB00000001"}, nil)
	b.On("UpdateTripStatus", mock.Anything, "cust", "TB00000001", "cancel").
		Return(&models.StatusUpdate{TripBookingID: "TB00000001"}, nil)
	b.On("RateTrip", mock.Anything, "cust", "TB00000001", mock.Anything).Return(nil)

	s := newSeeder(b, "pw", 7)
	s.customer, s.driver = customer, driver

	counts, err := s.seed(context.Background(), 40)
	require.NoError(t, err)
	total := 0
	for _, n := range counts {
		total += n
	}
	assert.Equal(t, 40, total)
	b.AssertNumberOfCalls(t, "BookTrip", 40)
	b.AssertNotCalled(t, "UpdateTripStatus", mock.Anything, "cust", mock.Anything, "accept")
}

func TestSeed_StopsOnBookingError(t *testing.T) {
	b := new(MockBackend)
	b.On("BookTrip", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &backend.APIError{StatusCode: http.StatusBadRequest, Message: "validation failed"})

	s := newSeeder(b, "pw", 7)
	s.customer, s.driver = account("cust", models.RoleCustomer), account("drv", models.RoleDriver)

	counts, err := s.seed(context.Background(), 5)
	require.Error(t, err)
	assert.Empty(t, counts)
	b.AssertNumberOfCalls(t, "BookTrip", 1)
}

func TestSeed_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newSeeder(new(MockBackend), "pw", 7)

	_, err := s.seed(ctx, 3)
	assert.ErrorIs(t, err, context.Canceled)
}
