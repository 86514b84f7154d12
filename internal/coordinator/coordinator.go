package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/joshp123/omhome/internal/resource"
)

const (
	// DefaultInterval sits just below the gateway's own ~30s state cadence.
	DefaultInterval    = 28 * time.Second
	DefaultCallTimeout = 15 * time.Second
)

// Fetcher returns the full list of one resource kind per call.
type Fetcher interface {
	Outputs(ctx context.Context) ([]resource.Output, error)
	Lights(ctx context.Context) ([]resource.Light, error)
	Shutters(ctx context.Context) ([]resource.Shutter, error)
	Sensors(ctx context.Context) ([]resource.Sensor, error)
	EnergySensors(ctx context.Context) ([]resource.EnergySensor, error)
	ThermostatGroups(ctx context.Context) ([]resource.ThermostatGroup, error)
	ThermostatUnits(ctx context.Context) ([]resource.ThermostatUnit, error)
	GroupActions(ctx context.Context) ([]resource.GroupAction, error)
}

// KindSupporter is implemented by fetchers that cannot list every kind.
// Unsupported kinds are published as empty lists and never count as failures.
type KindSupporter interface {
	Supports(kind resource.Kind) bool
}

type Options struct {
	Name        string
	Interval    time.Duration
	CallTimeout time.Duration
	Logger      *logrus.Entry
}

// Coordinator owns the refresh cycle and the published snapshot.
type Coordinator struct {
	fetcher Fetcher
	name    string
	kinds   []resource.Kind

	interval    time.Duration
	callTimeout time.Duration
	log         *logrus.Entry

	data      atomic.Pointer[resource.Snapshot]
	inflight  singleflight.Group
	publishMu sync.Mutex
	started   atomic.Bool
	requests  chan struct{}

	stateMu     sync.RWMutex
	lastSuccess bool
	lastErr     error
	lastUpdated time.Time
	lifetime    context.Context

	observerMu   sync.RWMutex
	observers    map[int]func(*resource.Snapshot)
	nextObserver int
}

func New(fetcher Fetcher, opts Options) *Coordinator {
	if opts.Name == "" {
		opts.Name = "openmotics"
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	c := &Coordinator{
		fetcher:     fetcher,
		name:        opts.Name,
		kinds:       supportedKinds(fetcher),
		interval:    opts.Interval,
		callTimeout: opts.CallTimeout,
		log:         opts.Logger.WithField("coordinator", opts.Name),
		requests:    make(chan struct{}, 1),
		observers:   make(map[int]func(*resource.Snapshot)),
		lifetime:    context.Background(),
	}
	c.data.Store(resource.EmptySnapshot())
	return c
}

func supportedKinds(fetcher Fetcher) []resource.Kind {
	supporter, ok := fetcher.(KindSupporter)
	if !ok {
		return resource.AllKinds()
	}
	var kinds []resource.Kind
	for _, kind := range resource.AllKinds() {
		if supporter.Supports(kind) {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

func (c *Coordinator) Name() string { return c.name }

func (c *Coordinator) Interval() time.Duration { return c.interval }

// Data returns the most recently published snapshot. It never blocks.
func (c *Coordinator) Data() *resource.Snapshot {
	return c.data.Load()
}

// LastUpdateSuccess is false when the latest cycle failed for any kind.
func (c *Coordinator) LastUpdateSuccess() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.lastSuccess
}

func (c *Coordinator) LastError() error {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.lastErr
}

func (c *Coordinator) LastUpdated() time.Time {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.lastUpdated
}

// Start runs the first refresh and then polls every interval until ctx is
// done. A first refresh in which every kind failed is returned and the poll
// loop is not started. Cancelling ctx also cancels any cycle in flight.
func (c *Coordinator) Start(ctx context.Context) error {
	c.stateMu.Lock()
	c.lifetime = ctx
	c.stateMu.Unlock()

	if _, err := c.Refresh(ctx); err != nil {
		var refreshErr *RefreshError
		if !errors.As(err, &refreshErr) || refreshErr.Total() {
			return fmt.Errorf("first refresh: %w", err)
		}
		c.log.WithError(err).Warn("first refresh incomplete")
	}
	if !c.started.CompareAndSwap(false, true) {
		return nil
	}
	go c.run(ctx)
	return nil
}

func (c *Coordinator) run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshAndLog(ctx, "interval")
		case <-c.requests:
			c.refreshAndLog(ctx, "request")
		}
	}
}

// RequestRefresh asks the poll loop for an out-of-band refresh. Requests made
// while one is already pending are dropped.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.requests <- struct{}{}:
	default:
	}
}

func (c *Coordinator) refreshAndLog(ctx context.Context, trigger string) {
	if _, err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
		entry := c.log.WithError(err).WithField("trigger", trigger)
		var refreshErr *RefreshError
		if errors.As(err, &refreshErr) && !refreshErr.Total() {
			entry.Warn("refresh incomplete")
			return
		}
		entry.Error("refresh failed")
	}
}

// Refresh fetches every kind and publishes the result. Calls made while a
// cycle is in flight wait for that cycle and share its result. The cycle runs
// under the coordinator's lifetime, so a caller whose ctx ends stops waiting
// without cancelling the cycle for the others.
func (c *Coordinator) Refresh(ctx context.Context) (*resource.Snapshot, error) {
	ch := c.inflight.DoChan("refresh", func() (any, error) {
		return c.refresh(c.lifetimeContext())
	})
	select {
	case <-ctx.Done():
		return c.Data(), ctx.Err()
	case res := <-ch:
		snap, _ := res.Val.(*resource.Snapshot)
		if snap == nil {
			snap = c.Data()
		}
		return snap, res.Err
	}
}

func (c *Coordinator) lifetimeContext() context.Context {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.lifetime
}

type fetchFunc func(ctx context.Context, f Fetcher, dst *resource.Snapshot) error

var fetchers = map[resource.Kind]fetchFunc{
	resource.KindOutput: func(ctx context.Context, f Fetcher, dst *resource.Snapshot) error {
		v, err := f.Outputs(ctx)
		dst.Outputs = orEmpty(v)
		return err
	},
	resource.KindLight: func(ctx context.Context, f Fetcher, dst *resource.Snapshot) error {
		v, err := f.Lights(ctx)
		dst.Lights = orEmpty(v)
		return err
	},
	resource.KindShutter: func(ctx context.Context, f Fetcher, dst *resource.Snapshot) error {
		v, err := f.Shutters(ctx)
		dst.Shutters = orEmpty(v)
		return err
	},
	resource.KindSensor: func(ctx context.Context, f Fetcher, dst *resource.Snapshot) error {
		v, err := f.Sensors(ctx)
		dst.Sensors = orEmpty(v)
		return err
	},
	resource.KindEnergySensor: func(ctx context.Context, f Fetcher, dst *resource.Snapshot) error {
		v, err := f.EnergySensors(ctx)
		dst.EnergySensors = orEmpty(v)
		return err
	},
	resource.KindThermostatGroup: func(ctx context.Context, f Fetcher, dst *resource.Snapshot) error {
		v, err := f.ThermostatGroups(ctx)
		dst.ThermostatGroups = orEmpty(v)
		return err
	},
	resource.KindThermostatUnit: func(ctx context.Context, f Fetcher, dst *resource.Snapshot) error {
		v, err := f.ThermostatUnits(ctx)
		dst.ThermostatUnits = orEmpty(v)
		return err
	},
	resource.KindGroupAction: func(ctx context.Context, f Fetcher, dst *resource.Snapshot) error {
		v, err := f.GroupActions(ctx)
		dst.GroupActions = orEmpty(v)
		return err
	},
}

func (c *Coordinator) refresh(ctx context.Context) (*resource.Snapshot, error) {
	start := time.Now()
	kinds := c.kinds
	next := resource.EmptySnapshot()

	var (
		mu       sync.Mutex
		failures = make(map[resource.Kind]error)
		g        errgroup.Group
	)
	for _, kind := range kinds {
		fetch := fetchers[kind]
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
			defer cancel()
			err := fetch(callCtx, c.fetcher, next)
			if err == nil {
				err = next.ValidateKind(kind)
			}
			if err != nil {
				mu.Lock()
				failures[kind] = err
				mu.Unlock()
				kindFailures.WithLabelValues(c.name, string(kind)).Inc()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		refreshTotal.WithLabelValues(c.name, "cancelled").Inc()
		return c.Data(), err
	}

	next.FetchedAt = time.Now()
	var result error
	switch {
	case len(kinds) > 0 && len(failures) == len(kinds):
		next = resource.EmptySnapshot()
		next.FetchedAt = time.Now()
		result = &RefreshError{Failed: failures, total: true}
		c.publish(next, nil)
		refreshTotal.WithLabelValues(c.name, "failure").Inc()
	case len(failures) > 0:
		result = &RefreshError{Failed: failures}
		c.publish(next, failures)
		refreshTotal.WithLabelValues(c.name, "partial").Inc()
	default:
		c.publish(next, nil)
		refreshTotal.WithLabelValues(c.name, "success").Inc()
	}

	c.stateMu.Lock()
	c.lastSuccess = result == nil
	c.lastErr = result
	c.lastUpdated = next.FetchedAt
	c.stateMu.Unlock()

	refreshDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	if result == nil {
		lastSuccess.WithLabelValues(c.name).Set(float64(next.FetchedAt.Unix()))
		updateSuccess.WithLabelValues(c.name).Set(1)
	} else {
		updateSuccess.WithLabelValues(c.name).Set(0)
	}
	for _, kind := range resource.AllKinds() {
		records.WithLabelValues(c.name, string(kind)).Set(float64(c.Data().Count(kind)))
	}

	return c.Data(), result
}

// publish swaps in next. Kinds listed in keep take the value currently
// published, so a failed fetch preserves the last known state.
func (c *Coordinator) publish(next *resource.Snapshot, keep map[resource.Kind]error) {
	c.publishMu.Lock()
	current := c.data.Load()
	for kind := range keep {
		resource.CopyKind(next, current, kind)
	}
	c.data.Store(next)
	c.publishMu.Unlock()

	c.notify(next)
}

// Update applies fn to a copy of the current snapshot and publishes the copy
// when fn reports a change.
func (c *Coordinator) Update(fn func(*resource.Snapshot) bool) bool {
	c.publishMu.Lock()
	next := c.data.Load().Clone()
	if !fn(next) {
		c.publishMu.Unlock()
		return false
	}
	c.data.Store(next)
	c.publishMu.Unlock()

	optimisticUpdates.WithLabelValues(c.name).Inc()
	c.notify(next)
	return true
}

// Subscribe registers fn to run after every publish. The returned function
// removes the observer.
func (c *Coordinator) Subscribe(fn func(*resource.Snapshot)) func() {
	c.observerMu.Lock()
	id := c.nextObserver
	c.nextObserver++
	c.observers[id] = fn
	c.observerMu.Unlock()

	return func() {
		c.observerMu.Lock()
		delete(c.observers, id)
		c.observerMu.Unlock()
	}
}

func (c *Coordinator) notify(snap *resource.Snapshot) {
	c.observerMu.RLock()
	list := make([]func(*resource.Snapshot), 0, len(c.observers))
	for _, fn := range c.observers {
		list = append(list, fn)
	}
	c.observerMu.RUnlock()

	for _, fn := range list {
		fn(snap)
	}
}

// RefreshError lists the kinds that failed in one cycle.
type RefreshError struct {
	Failed map[resource.Kind]error
	total  bool
}

// Total reports whether every kind failed.
func (e *RefreshError) Total() bool { return e.total }

func (e *RefreshError) Error() string {
	kinds := make([]string, 0, len(e.Failed))
	for kind := range e.Failed {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	if len(kinds) == 0 {
		return "refresh failed"
	}
	first := e.Failed[resource.Kind(kinds[0])]
	if e.total {
		return fmt.Sprintf("refresh failed for all kinds: %v", first)
	}
	return fmt.Sprintf("refresh failed for %s: %v", strings.Join(kinds, ", "), first)
}

func (e *RefreshError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		out = append(out, err)
	}
	return out
}

func orEmpty[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
