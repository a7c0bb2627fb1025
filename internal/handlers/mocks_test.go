package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/cabtrips/internal/models"
	"github.com/ukydev/cabtrips/internal/session"
	"github.com/ukydev/cabtrips/internal/triplist"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

// MockSessions is a mock implementation of Sessions
type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) Open(ctx context.Context, token string, user models.User) (*session.Session, error) {
	args := m.Called(ctx, token, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Session), args.Error(1)
}

func (m *MockSessions) Lookup(ctx context.Context, id string) (*session.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Session), args.Error(1)
}

func (m *MockSessions) Invalidate(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockAuthBackend is a mock implementation of AuthBackend
type MockAuthBackend struct {
	mock.Mock
}

func (m *MockAuthBackend) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoginResponse), args.Error(1)
}

func (m *MockAuthBackend) Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoginResponse), args.Error(1)
}

// MockActionBackend is a mock implementation of ActionBackend
type MockActionBackend struct {
	mock.Mock
}

func (m *MockActionBackend) UpdateTripStatus(ctx context.Context, token, tripID, action string) (*models.StatusUpdate, error) {
	args := m.Called(ctx, token, tripID, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StatusUpdate), args.Error(1)
}

func (m *MockActionBackend) RateTrip(ctx context.Context, token, tripID string, rating float64) error {
	args := m.Called(ctx, token, tripID, rating)
	return args.Error(0)
}

func (m *MockActionBackend) BookTrip(ctx context.Context, token string, req models.BookRequest) (map[string]any, error) {
	args := m.Called(ctx, token, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

// MockFleetBackend is a mock implementation of FleetBackend
type MockFleetBackend struct {
	mock.Mock
}

func (m *MockFleetBackend) UpdateCab(ctx context.Context, token, cabID string, update models.CabUpdate) (*models.Cab, error) {
	args := m.Called(ctx, token, cabID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cab), args.Error(1)
}

func (m *MockFleetBackend) UploadCabImage(ctx context.Context, token, cabID, filename string, image io.Reader) (*models.Cab, error) {
	args := m.Called(ctx, token, cabID, filename, image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cab), args.Error(1)
}

func (m *MockFleetBackend) DeleteCabImage(ctx context.Context, token, cabID, name string) error {
	args := m.Called(ctx, token, cabID, name)
	return args.Error(0)
}

func (m *MockFleetBackend) PendingVerifications(ctx context.Context, token string) ([]models.Verification, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Verification), args.Error(1)
}

func (m *MockFleetBackend) Verify(ctx context.Context, token, id string, approve bool, note string) (*models.Verification, error) {
	args := m.Called(ctx, token, id, approve, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Verification), args.Error(1)
}

// fakeSource serves fixed records and counts purges.
type fakeSource struct {
	mu      sync.Mutex
	records []map[string]any
	err     error
	fetches int
	purges  int
}

func (f *fakeSource) Fetch(ctx context.Context, token, userID string, scope triplist.Scope) (triplist.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return triplist.FetchResult{}, f.err
	}
	return triplist.FetchResult{Records: f.records}, nil
}

func (f *fakeSource) Fetcher(token, userID string, scope triplist.Scope) triplist.Fetcher {
	return triplist.FetchFunc(func(ctx context.Context) (triplist.FetchResult, error) {
		return f.Fetch(ctx, token, userID, scope)
	})
}

func (f *fakeSource) Purge() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purges++
}

// fakeDates answers day lookups with fixed records.
type fakeDates struct {
	records []map[string]any
	day     time.Time
}

func (f *fakeDates) TripsByDate(ctx context.Context, token string, day time.Time) ([]map[string]any, error) {
	f.day = day
	return f.records, nil
}

// stubSessions resolves a fixed set of sessions.
type stubSessions map[string]*session.Session

func (s stubSessions) Lookup(ctx context.Context, id string) (*session.Session, error) {
	if sess, ok := s[id]; ok {
		return sess, nil
	}
	return nil, session.ErrNoSession
}

var (
	driverSession   = &session.Session{ID: "sess-driver", Token: "jwt-driver", UserID: "d1", Username: "ravi", Name: "Ravi Kumar", Role: models.RoleDriver}
	customerSession = &session.Session{ID: "sess-customer", Token: "jwt-customer", UserID: "c1", Username: "asha", Name: "Asha Rao", Role: models.RoleCustomer}
	adminSession    = &session.Session{ID: "sess-admin", Token: "jwt-admin", UserID: "a1", Username: "root", Name: "Admin", Role: models.RoleAdmin}
)

// bookings builds n backend payloads with fares 101..100+n, newest first.
func bookings(n int, status string) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		start := testNow.Add(-time.Duration(i) * time.Hour)
		out = append(out, map[string]any{
			"tripBookingId": float64(i),
			"customer":      map[string]any{"customerId": "c1", "customerName": fmt.Sprintf("Rider %02d", i)},
			"driverId":      "d1",
			"fromLocation":  "Andheri East",
			"toLocation":    "Mumbai Domestic Airport Terminal 1",
			"fromDateTime":  start.Format(time.RFC3339),
			"toDateTime":    start.Add(30 * time.Minute).Format(time.RFC3339),
			"distanceinKm":  float64(i),
			"bill":          float64(100 + i),
			"status":        status,
			"paymentMode":   "cash",
		})
	}
	return out
}

type testAPI struct {
	handler  http.Handler
	source   *fakeSource
	dates    *fakeDates
	actions  *MockActionBackend
	fleet    *MockFleetBackend
	registry *ViewRegistry
}

func newTestAPI(records []map[string]any) *testAPI {
	api := &testAPI{
		source:  &fakeSource{records: records},
		dates:   &fakeDates{},
		actions: new(MockActionBackend),
		fleet:   new(MockFleetBackend),
	}
	opts := ViewOptions{PageSize: 10, SearchDelay: time.Hour, Clock: testClock, Location: time.UTC}
	api.registry = NewViewRegistry(api.source, api.actions, opts)
	rt := &Router{
		Auth:     NewAuthHandler(new(MockAuthBackend), new(MockSessions)),
		Trips:    NewTripsHandler(api.registry, api.source, api.dates, opts),
		Fleet:    NewFleetHandler(api.fleet),
		Sessions: stubSessions{driverSession.ID: driverSession, customerSession.ID: customerSession, adminSession.ID: adminSession},
		Origins:  []string{"*"},
	}
	api.handler = rt.Handler()
	return api
}

func (a *testAPI) do(t *testing.T, s *session.Session, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s != nil {
		req.Header.Set("Authorization", "Bearer "+s.ID)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) triplist.Snapshot {
	t.Helper()
	var snap triplist.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	return snap
}
