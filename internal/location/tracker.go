package location

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"HibiscusGuard/internal/models"
	"HibiscusGuard/pkg/errors"
	"HibiscusGuard/pkg/logger"
	"HibiscusGuard/pkg/metrics"
)

// Permission states of the tracker.
const (
	PermissionUnknown         = "unknown"
	PermissionRequesting      = "requesting"
	PermissionGrantedSingle   = "granted-single"
	PermissionGrantedTracking = "granted-tracking"
	PermissionDenied          = "denied"
)

// historySize bounds the retained fix history.
const historySize = 100

// Options mirror the platform geolocation request options.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxFixAge    time.Duration
}

// OneShotOptions are the defaults for a single fix request.
func OneShotOptions() Options {
	return Options{HighAccuracy: true, Timeout: 10 * time.Second, MaxFixAge: 60 * time.Second}
}

// TrackingOptions are the defaults for a continuous watch.
func TrackingOptions() Options {
	return Options{HighAccuracy: true, Timeout: 10 * time.Second, MaxFixAge: 5 * time.Second}
}

// Provider is the platform geolocation capability. Watch must call
// exactly one of onFix/onErr per platform callback and must stop
// delivering after the returned stop function runs.
type Provider interface {
	Current(ctx context.Context, opts Options) (models.Fix, error)
	Watch(opts Options, onFix func(models.Fix), onErr func(error)) (stop func(), err error)
}

// inflight is a single-flight slot for concurrent Current callers.
type inflight struct {
	done chan struct{}
	fix  models.Fix
	err  error
}

// Tracker owns access to the device's geolocation capability. It is
// the only component allowed to mutate the device location; everyone
// else reads through CurrentFix/History or subscribes to the fix
// stream.
type Tracker struct {
	mu       sync.Mutex
	provider Provider
	state    string

	current *models.Fix
	history *lru.Cache[int, models.Fix]
	histSeq int

	pending   *inflight
	stopWatch func()

	subs   map[int]chan models.Fix
	nextID int
}

// NewTracker creates a tracker over the given provider.
func NewTracker(provider Provider) *Tracker {
	hist, _ := lru.New[int, models.Fix](historySize)
	return &Tracker{
		provider: provider,
		state:    PermissionUnknown,
		history:  hist,
		subs:     make(map[int]chan models.Fix),
	}
}

// State returns the current permission state.
func (t *Tracker) State() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// CurrentFix returns the most recent fix, if any.
func (t *Tracker) CurrentFix() (models.Fix, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return models.Fix{}, false
	}
	return *t.current, true
}

// History returns the retained fixes, oldest first.
func (t *Tracker) History() []models.Fix {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := t.history.Keys()
	out := make([]models.Fix, 0, len(keys))
	for _, k := range keys {
		if f, ok := t.history.Peek(k); ok {
			out = append(out, f)
		}
	}
	return out
}

// Subscribe returns a stream of fixes and a cancel function.
func (t *Tracker) Subscribe() (<-chan models.Fix, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	ch := make(chan models.Fix, 8)
	t.subs[id] = ch

	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if c, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(c)
		}
	}
}

// recordLocked stores a fix and fans it out. Caller holds the lock.
func (t *Tracker) recordLocked(fix models.Fix) {
	f := fix
	t.current = &f
	t.history.Add(t.histSeq, fix)
	t.histSeq++
	if mt := metrics.Global(); mt != nil {
		mt.RecordFix()
	}
	for _, ch := range t.subs {
		select {
		case ch <- fix:
		default:
		}
	}
}

// Current acquires exactly one fix. Concurrent callers share a single
// in-flight platform request. Failure surfaces as a coded location
// error and, for permission denial, as the denied state.
func (t *Tracker) Current(ctx context.Context) (models.Fix, error) {
	t.mu.Lock()
	if p := t.pending; p != nil {
		t.mu.Unlock()
		select {
		case <-p.done:
			return p.fix, p.err
		case <-ctx.Done():
			return models.Fix{}, errors.WrapCode(errors.CodeLocationTimeout, ctx.Err(), "location request cancelled")
		}
	}

	p := &inflight{done: make(chan struct{})}
	t.pending = p
	if t.state == PermissionUnknown || t.state == PermissionDenied {
		t.state = PermissionRequesting
	}
	t.mu.Unlock()

	fix, err := t.provider.Current(ctx, OneShotOptions())

	t.mu.Lock()
	t.pending = nil
	if err != nil {
		t.applyErrorLocked(err)
	} else {
		// Tracking state survives a one-shot request.
		if t.state != PermissionGrantedTracking {
			t.state = PermissionGrantedSingle
		}
		t.recordLocked(fix)
	}
	t.mu.Unlock()

	p.fix, p.err = fix, err
	close(p.done)
	return fix, err
}

// StartTracking begins the continuous watch. It is a no-op while a
// watch is already active.
func (t *Tracker) StartTracking() error {
	t.mu.Lock()
	if t.stopWatch != nil {
		t.mu.Unlock()
		return nil
	}
	if t.state == PermissionUnknown || t.state == PermissionDenied {
		t.state = PermissionRequesting
	}
	t.mu.Unlock()

	stop, err := t.provider.Watch(TrackingOptions(), t.onWatchFix, t.onWatchError)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.applyErrorLocked(err)
		return err
	}
	t.stopWatch = stop
	t.state = PermissionGrantedTracking
	logger.Info("location tracking started")
	return nil
}

// StopTracking tears the watch down and clears the current fix.
func (t *Tracker) StopTracking() {
	t.mu.Lock()
	stop := t.stopWatch
	t.stopWatch = nil
	if t.state == PermissionGrantedTracking {
		t.state = PermissionGrantedSingle
	}
	t.current = nil
	t.mu.Unlock()

	if stop != nil {
		stop()
		logger.Info("location tracking stopped")
	}
}

// onWatchFix handles a fix emitted by the continuous watch.
func (t *Tracker) onWatchFix(fix models.Fix) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopWatch == nil {
		// Late callback after teardown.
		return
	}
	t.recordLocked(fix)
}

// onWatchError handles a watch failure: the subscription is released
// and the state machine reflects the cause. No further fixes are
// emitted until a fresh manual request.
func (t *Tracker) onWatchError(err error) {
	t.mu.Lock()
	stop := t.stopWatch
	t.stopWatch = nil
	t.applyErrorLocked(err)
	t.mu.Unlock()

	if stop != nil {
		stop()
	}
	logger.Warn("location tracking failed", zap.Error(err))
}

// applyErrorLocked maps a location failure onto the state machine.
// Caller holds the lock.
func (t *Tracker) applyErrorLocked(err error) {
	var kind string
	switch errors.GetCode(err) {
	case errors.CodeLocationDenied:
		kind = "permission_denied"
		t.state = PermissionDenied
		t.current = nil
	case errors.CodeLocationTimeout:
		kind = "timeout"
		t.degradeLocked()
	default:
		kind = "position_unavailable"
		t.degradeLocked()
	}
	if mt := metrics.Global(); mt != nil {
		mt.RecordLocationError(kind)
	}
}

// degradeLocked drops out of requesting/tracking after a transient
// failure without revoking a previously granted permission.
func (t *Tracker) degradeLocked() {
	switch t.state {
	case PermissionRequesting:
		t.state = PermissionUnknown
	case PermissionGrantedTracking:
		t.state = PermissionGrantedSingle
	}
}

// Teardown releases the watch and all subscriber channels.
func (t *Tracker) Teardown() {
	t.StopTracking()
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}
