package location

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HibiscusGuard/internal/models"
)

// fakeProvider scripts the platform geolocation capability.
type fakeProvider struct {
	mu         sync.Mutex
	currentFn  func(ctx context.Context, opts Options) (models.Fix, error)
	watchErr   error
	onFix      func(models.Fix)
	onErr      func(error)
	currentN   atomic.Int32
	stopCalled atomic.Int32
}

func (f *fakeProvider) Current(ctx context.Context, opts Options) (models.Fix, error) {
	f.currentN.Add(1)
	if f.currentFn != nil {
		return f.currentFn(ctx, opts)
	}
	return models.Fix{Lat: 19.07, Lng: 72.87, Timestamp: time.Now()}, nil
}

func (f *fakeProvider) Watch(opts Options, onFix func(models.Fix), onErr func(error)) (func(), error) {
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	f.mu.Lock()
	f.onFix = onFix
	f.onErr = onErr
	f.mu.Unlock()
	return func() { f.stopCalled.Add(1) }, nil
}

func (f *fakeProvider) emit(fix models.Fix) {
	f.mu.Lock()
	fn := f.onFix
	f.mu.Unlock()
	if fn != nil {
		fn(fix)
	}
}

func (f *fakeProvider) fail(err error) {
	f.mu.Lock()
	fn := f.onErr
	f.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func TestCurrentGrantsSingle(t *testing.T) {
	tr := NewTracker(&fakeProvider{})
	assert.Equal(t, PermissionUnknown, tr.State())

	fix, err := tr.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 19.07, fix.Lat)
	assert.Equal(t, PermissionGrantedSingle, tr.State())

	got, ok := tr.CurrentFix()
	require.True(t, ok)
	assert.Equal(t, fix, got)
}

func TestCurrentDeniedSetsState(t *testing.T) {
	fp := &fakeProvider{currentFn: func(context.Context, Options) (models.Fix, error) {
		return models.Fix{}, ErrPermissionDenied("user refused")
	}}
	tr := NewTracker(fp)

	_, err := tr.Current(context.Background())
	require.Error(t, err)
	assert.Equal(t, PermissionDenied, tr.State())
	_, ok := tr.CurrentFix()
	assert.False(t, ok)
}

func TestCurrentSingleFlight(t *testing.T) {
	release := make(chan struct{})
	fp := &fakeProvider{currentFn: func(ctx context.Context, _ Options) (models.Fix, error) {
		<-release
		return models.Fix{Lat: 1, Lng: 2}, nil
	}}
	tr := NewTracker(fp)

	var wg sync.WaitGroup
	results := make([]models.Fix, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = tr.Current(context.Background())
		}(i)
	}

	// Give every goroutine time to join the in-flight request.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), fp.currentN.Load(), "concurrent callers share one platform request")
	for _, r := range results {
		assert.Equal(t, 1.0, r.Lat)
	}
}

func TestTrackingLifecycle(t *testing.T) {
	fp := &fakeProvider{}
	tr := NewTracker(fp)

	require.NoError(t, tr.StartTracking())
	assert.Equal(t, PermissionGrantedTracking, tr.State())

	fp.emit(models.Fix{Lat: 10, Lng: 20, Timestamp: time.Now()})
	fp.emit(models.Fix{Lat: 11, Lng: 21, Timestamp: time.Now()})

	got, ok := tr.CurrentFix()
	require.True(t, ok)
	assert.Equal(t, 11.0, got.Lat)
	assert.Len(t, tr.History(), 2)

	tr.StopTracking()
	assert.Equal(t, PermissionGrantedSingle, tr.State())
	assert.Equal(t, int32(1), fp.stopCalled.Load())
	_, ok = tr.CurrentFix()
	assert.False(t, ok, "stopping tracking clears the current fix")

	// Callbacks arriving after teardown are ignored.
	fp.emit(models.Fix{Lat: 99, Lng: 99})
	_, ok = tr.CurrentFix()
	assert.False(t, ok)
}

func TestStartTrackingIdempotent(t *testing.T) {
	fp := &fakeProvider{}
	tr := NewTracker(fp)

	require.NoError(t, tr.StartTracking())
	require.NoError(t, tr.StartTracking())
	tr.StopTracking()
	assert.Equal(t, int32(1), fp.stopCalled.Load(), "second start is a no-op")
}

func TestPermissionRevokedMidTracking(t *testing.T) {
	fp := &fakeProvider{}
	tr := NewTracker(fp)
	require.NoError(t, tr.StartTracking())

	fp.emit(models.Fix{Lat: 10, Lng: 20})
	fp.fail(ErrPermissionDenied("revoked"))

	assert.Equal(t, PermissionDenied, tr.State())
	assert.Equal(t, int32(1), fp.stopCalled.Load(), "watch subscription released on failure")
	_, ok := tr.CurrentFix()
	assert.False(t, ok)
}

func TestTransientWatchErrorDegrades(t *testing.T) {
	fp := &fakeProvider{}
	tr := NewTracker(fp)
	require.NoError(t, tr.StartTracking())

	fp.fail(ErrTimeout("no fix in time"))
	assert.Equal(t, PermissionGrantedSingle, tr.State(), "timeout degrades without revoking the grant")
}

func TestHistoryBounded(t *testing.T) {
	fp := &fakeProvider{}
	tr := NewTracker(fp)
	require.NoError(t, tr.StartTracking())

	for i := 0; i < historySize+20; i++ {
		fp.emit(models.Fix{Lat: float64(i), Timestamp: time.Now()})
	}

	hist := tr.History()
	require.Len(t, hist, historySize)
	assert.Equal(t, float64(20), hist[0].Lat, "oldest fixes evicted first")
	assert.Equal(t, float64(historySize+19), hist[len(hist)-1].Lat)
}

func TestSubscribeReceivesFixes(t *testing.T) {
	fp := &fakeProvider{}
	tr := NewTracker(fp)
	ch, cancel := tr.Subscribe()
	defer cancel()
	require.NoError(t, tr.StartTracking())

	fp.emit(models.Fix{Lat: 5, Lng: 6})

	select {
	case fix := <-ch:
		assert.Equal(t, 5.0, fix.Lat)
	case <-time.After(time.Second):
		t.Fatal("expected a fix on the subscription stream")
	}
}
