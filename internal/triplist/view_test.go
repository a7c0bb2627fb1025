package triplist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/cabtrips/internal/models"
)

type MockPerformer struct {
	mock.Mock
}

func (m *MockPerformer) Perform(ctx context.Context, trip models.Trip, action Action, args ActionArgs) error {
	return m.Called(ctx, trip.ID, action, args).Error(0)
}

func staticFetcher(records []map[string]any) Fetcher {
	return FetchFunc(func(ctx context.Context) (FetchResult, error) {
		return FetchResult{Records: records}, nil
	})
}

func newTestView(profile Profile, fetcher Fetcher, performer Performer) *View {
	return NewView(profile, fetcher, Options{
		PageSize:    10,
		SearchDelay: time.Hour,
		Clock:       fixedClock,
		Location:    time.UTC,
		Performer:   performer,
	})
}

func TestView_RefreshAndPaginate(t *testing.T) {
	v := newTestView(DriverProfile(), staticFetcher(rawTrips(23)), nil)

	empty := v.Snapshot()
	assert.Equal(t, 0, empty.TotalPages)
	assert.Equal(t, 0, empty.Page)
	assert.Empty(t, empty.Trips)

	require.NoError(t, v.Refresh(context.Background()))

	snap := v.Snapshot()
	assert.Equal(t, 23, snap.TotalItems)
	assert.Equal(t, 3, snap.TotalPages)
	assert.Equal(t, 1, snap.Page)
	assert.Len(t, snap.Trips, 10)
	assert.Equal(t, "1", snap.Trips[0].ID, "most recent first")
	assert.Equal(t, []Action{ActionAccept, ActionCancel}, snap.Trips[0].Actions)
	require.NotNil(t, snap.LoadedAt)

	assert.Equal(t, 3, v.Goto(3))
	assert.Len(t, v.Snapshot().Trips, 3)
	assert.Equal(t, 3, v.Next())
	assert.Equal(t, 2, v.Prev())
	assert.Len(t, v.Filtered(), 23)
}

func TestView_CriteriaResetsPageAndRecomputes(t *testing.T) {
	v := newTestView(AdminProfile(), staticFetcher(rawTrips(23)), nil)
	require.NoError(t, v.Refresh(context.Background()))
	v.Goto(3)

	require.NoError(t, v.SetCriteria(models.FilterCriteria{MinFare: 115}))

	snap := v.Snapshot()
	assert.Equal(t, 9, snap.TotalItems)
	assert.Equal(t, 1, snap.Page)
	assert.Equal(t, 9, snap.Stats.TotalTrips)

	err := v.SetCriteria(models.FilterCriteria{Status: "flying"})
	_, ok := models.AsValidationErrors(err)
	assert.True(t, ok)
	assert.Equal(t, 9, v.Snapshot().TotalItems)
}

func TestView_SearchIsDebouncedAndKeptAcrossCriteria(t *testing.T) {
	records := rawTrips(3)
	records[1]["toLocation"] = "Bandra Kurla Complex"
	v := newTestView(CustomerProfile(), staticFetcher(records), nil)
	require.NoError(t, v.Refresh(context.Background()))

	v.SetSearch("airport")
	assert.Equal(t, 3, v.Snapshot().TotalItems, "not applied before the delay")

	v.FlushSearch()
	assert.Equal(t, 2, v.Snapshot().TotalItems)

	require.NoError(t, v.SetCriteria(models.FilterCriteria{Status: "requested"}))
	snap := v.Snapshot()
	assert.Equal(t, "airport", snap.Criteria.Search)
	assert.Equal(t, 2, snap.TotalItems)
}

func TestView_SearchAppliesAfterDelay(t *testing.T) {
	v := NewView(DriverProfile(), staticFetcher(rawTrips(12)), Options{SearchDelay: 10 * time.Millisecond, Clock: fixedClock, Location: time.UTC})
	require.NoError(t, v.Refresh(context.Background()))

	v.SetSearch("rider 1")

	require.Eventually(t, func() bool { return v.Snapshot().TotalItems == 3 }, time.Second, 5*time.Millisecond)
}

func TestView_ToggleSort(t *testing.T) {
	v := newTestView(DriverProfile(), staticFetcher(rawTrips(5)), nil)
	require.NoError(t, v.Refresh(context.Background()))

	spec, err := v.ToggleSort(models.SortByFare)
	require.NoError(t, err)
	assert.Equal(t, models.Descending, spec.Dir)
	assert.Equal(t, "5", v.Snapshot().Trips[0].ID)

	spec, err = v.ToggleSort(models.SortByFare)
	require.NoError(t, err)
	assert.Equal(t, models.Ascending, spec.Dir)
	assert.Equal(t, "1", v.Snapshot().Trips[0].ID)

	_, err = v.ToggleSort("colour")
	assert.ErrorIs(t, err, ErrInvalidSortKey)
}

func TestView_LatestRefreshWins(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	calls := 0
	fetcher := FetchFunc(func(ctx context.Context) (FetchResult, error) {
		calls++
		if calls == 1 {
			close(started)
			<-release // ignores cancellation to simulate a slow response
			return FetchResult{Records: rawTrips(2)}, nil
		}
		return FetchResult{Records: rawTrips(7)}, nil
	})
	v := newTestView(AdminProfile(), fetcher, nil)

	firstErr := make(chan error, 1)
	go func() { firstErr <- v.Refresh(context.Background()) }()
	<-started

	require.NoError(t, v.Refresh(context.Background()))
	close(release)

	assert.ErrorIs(t, <-firstErr, ErrStaleResponse)
	assert.Equal(t, 7, v.Snapshot().TotalItems)
	assert.False(t, v.Snapshot().Loading)
}

func TestView_NewRefreshCancelsInFlight(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan error, 1)
	calls := 0
	fetcher := FetchFunc(func(ctx context.Context) (FetchResult, error) {
		calls++
		if calls == 1 {
			close(started)
			<-ctx.Done()
			cancelled <- ctx.Err()
			return FetchResult{}, ctx.Err()
		}
		return FetchResult{Records: rawTrips(4)}, nil
	})
	v := newTestView(AdminProfile(), fetcher, nil)

	firstErr := make(chan error, 1)
	go func() { firstErr <- v.Refresh(context.Background()) }()
	<-started

	require.NoError(t, v.Refresh(context.Background()))

	assert.ErrorIs(t, <-cancelled, context.Canceled)
	assert.ErrorIs(t, <-firstErr, ErrStaleResponse)
	assert.Equal(t, 4, v.Snapshot().TotalItems)
	assert.Empty(t, v.Snapshot().Message)
}

func TestView_FetchFailureKeepsTrips(t *testing.T) {
	fail := false
	fetcher := FetchFunc(func(ctx context.Context) (FetchResult, error) {
		if fail {
			return FetchResult{}, errors.New("connection refused")
		}
		return FetchResult{Records: rawTrips(5)}, nil
	})
	v := newTestView(DriverProfile(), fetcher, nil)
	require.NoError(t, v.Refresh(context.Background()))

	fail = true
	err := v.Refresh(context.Background())

	require.Error(t, err)
	snap := v.Snapshot()
	assert.Equal(t, 5, snap.TotalItems)
	assert.Contains(t, snap.Message, "connection refused")
	assert.False(t, snap.Loading)
}

func TestView_StaleFallbackIsReported(t *testing.T) {
	fetcher := FetchFunc(func(ctx context.Context) (FetchResult, error) {
		return FetchResult{Records: rawTrips(2), Stale: true, Message: "Showing cached trips"}, nil
	})
	v := newTestView(DriverProfile(), fetcher, nil)
	require.NoError(t, v.Refresh(context.Background()))

	snap := v.Snapshot()
	assert.True(t, snap.Stale)
	assert.Equal(t, "Showing cached trips", snap.Message)
}

func TestView_CloseIgnoresLateResults(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fetcher := FetchFunc(func(ctx context.Context) (FetchResult, error) {
		close(started)
		<-release
		return FetchResult{Records: rawTrips(3)}, nil
	})
	v := newTestView(DriverProfile(), fetcher, nil)

	done := make(chan error, 1)
	go func() { done <- v.Refresh(context.Background()) }()
	<-started
	v.Close()
	close(release)

	assert.ErrorIs(t, <-done, ErrViewClosed)
	assert.Zero(t, v.Snapshot().TotalItems)
	assert.True(t, v.Closed())
	assert.ErrorIs(t, v.Refresh(context.Background()), ErrViewClosed)
	assert.ErrorIs(t, v.SetCriteria(models.FilterCriteria{}), ErrViewClosed)

	v.SetSearch("anything")
	v.FlushSearch()
	assert.Empty(t, v.Snapshot().Criteria.Search)
}

func TestView_PerformAppliesOptimisticUpdate(t *testing.T) {
	performer := new(MockPerformer)
	performer.On("Perform", mock.Anything, "2", ActionAccept, ActionArgs{}).Return(nil)
	v := newTestView(DriverProfile(), staticFetcher(rawTrips(3)), performer)
	require.NoError(t, v.Refresh(context.Background()))

	got, err := v.Perform(context.Background(), "2", ActionAccept, ActionArgs{})

	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)
	for _, row := range v.Snapshot().Trips {
		if row.ID == "2" {
			assert.Equal(t, []Action{ActionStart, ActionCancel}, row.Actions)
		}
	}
	performer.AssertExpectations(t)
}

func TestView_PerformRejectsDisallowedAction(t *testing.T) {
	performer := new(MockPerformer)
	v := newTestView(DriverProfile(), staticFetcher(rawTrips(3)), performer)
	require.NoError(t, v.Refresh(context.Background()))

	_, err := v.Perform(context.Background(), "1", ActionComplete, ActionArgs{})
	assert.ErrorIs(t, err, ErrActionNotAllowed)

	_, err = v.Perform(context.Background(), "99", ActionAccept, ActionArgs{})
	assert.ErrorIs(t, err, ErrTripNotFound)

	performer.AssertNotCalled(t, "Perform", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestView_PerformBackendFailureLeavesTrip(t *testing.T) {
	backendErr := errors.New("backend said no")
	performer := new(MockPerformer)
	performer.On("Perform", mock.Anything, "1", ActionCancel, ActionArgs{}).Return(backendErr)
	v := newTestView(DriverProfile(), staticFetcher(rawTrips(3)), performer)
	require.NoError(t, v.Refresh(context.Background()))

	_, err := v.Perform(context.Background(), "1", ActionCancel, ActionArgs{})

	assert.ErrorIs(t, err, backendErr)
	assert.Equal(t, 0, v.Stats().CancelledTrips)
}

func TestView_PerformWithoutPerformer(t *testing.T) {
	v := newTestView(DriverProfile(), staticFetcher(rawTrips(1)), nil)
	require.NoError(t, v.Refresh(context.Background()))

	_, err := v.Perform(context.Background(), "1", ActionAccept, ActionArgs{})
	assert.ErrorIs(t, err, ErrNoActionPerformer)
}

func TestView_ApplyRemoteStatus(t *testing.T) {
	v := newTestView(AdminProfile(), staticFetcher(rawTrips(3)), nil)
	require.NoError(t, v.Refresh(context.Background()))

	assert.True(t, v.ApplyRemoteStatus("3", models.StatusCompleted))
	assert.False(t, v.ApplyRemoteStatus("404", models.StatusCompleted))

	stats := v.Stats()
	assert.Equal(t, 1, stats.CompletedTrips)
	assert.InDelta(t, 103, stats.TotalEarnings, 1e-9)
}
