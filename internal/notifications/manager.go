package notifications

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/eventix-edge/internal/identity"
	pkgerrors "github.com/angelmondragon/eventix-edge/pkg/errors"
	"github.com/angelmondragon/eventix-edge/pkg/logger"
	"github.com/angelmondragon/eventix-edge/pkg/metrics"
	"github.com/angelmondragon/eventix-edge/pkg/realtime"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const (
	defaultToastTTL       = 6 * time.Second
	defaultHistoryLimit   = 50
	defaultResolveTimeout = 15 * time.Second
	teardownTimeout       = 5 * time.Second
)

// ErrTornDown is returned by Initialize after Teardown.
var ErrTornDown = stdErrors.New("notification manager torn down")

// Connector opens the messaging connection. realtime.Connect in production.
type Connector func(ctx context.Context, creds realtime.Credentials, logg *logger.Logger) (realtime.Connection, error)

// AfterFunc schedules f after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func timeAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Config carries the provider settings.
type Config struct {
	Credentials    realtime.Credentials
	ToastTTL       time.Duration
	HistoryLimit   int
	ResolveTimeout time.Duration
}

// Snapshot is a point-in-time copy of the provider state.
type Snapshot struct {
	Channel        string         `json:"channel,omitempty"`
	Degraded       bool           `json:"degraded"`
	DegradedReason string         `json:"degraded_reason,omitempty"`
	Toasts         []Notification `json:"toasts"`
	History        []Notification `json:"history"`
	Unread         int            `json:"unread"`
}

// Option customizes a Manager.
type Option func(*Manager)

func WithConnector(connect Connector) Option {
	return func(m *Manager) {
		if connect != nil {
			m.connect = connect
		}
	}
}

func WithAfterFunc(after AfterFunc) Option {
	return func(m *Manager) {
		if after != nil {
			m.afterFunc = after
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithMetrics(mtr *metrics.RealtimeMetrics) Option {
	return func(m *Manager) {
		m.metrics = mtr
	}
}

// WithEventMapper adds or replaces the mapper bound for an event name.
func WithEventMapper(event string, mapper EventMapper) Option {
	return func(m *Manager) {
		event = strings.TrimSpace(event)
		if event == "" || mapper == nil {
			return
		}
		m.mappers[event] = mapper
	}
}

// Manager is the single owner of the messaging connection and of the tenant
// channel subscription. It fans inbound events out into toasts, history and
// the unread counter.
type Manager struct {
	cfg       Config
	resolver  identity.Resolver
	logg      *logger.Logger
	metrics   *metrics.RealtimeMetrics
	connect   Connector
	afterFunc AfterFunc
	now       func() time.Time
	mappers   map[string]EventMapper

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// lifecycle serializes connection and subscription changes.
	lifecycle   sync.Mutex
	conn        realtime.Connection
	initialized bool
	active      realtime.Channel

	mu             sync.Mutex
	latestRequest  uint64
	activeName     string
	degraded       bool
	degradedReason string
	torn           bool
	toasts         []Notification
	timers         map[string]func() bool
	history        []Notification
	unread         int
	watchers       map[uint64]chan Snapshot
	nextWatcher    uint64
}

// NewManager builds a provider. Nothing is dialed until Initialize.
func NewManager(cfg Config, resolver identity.Resolver, logg *logger.Logger, opts ...Option) (*Manager, error) {
	if resolver == nil {
		return nil, fmt.Errorf("identity resolver required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.ToastTTL <= 0 {
		cfg.ToastTTL = defaultToastTTL
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = defaultResolveTimeout
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:       cfg,
		resolver:  resolver,
		logg:      logg,
		connect:   realtime.Connect,
		afterFunc: timeAfterFunc,
		now:       time.Now,
		mappers:   DefaultMappers(),
		baseCtx:   baseCtx,
		cancel:    cancel,
		timers:    make(map[string]func() bool),
		watchers:  make(map[uint64]chan Snapshot),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Initialize opens the messaging connection once. Missing credentials put the
// manager in degraded mode without an error; a failed dial degrades it and
// returns the error.
func (m *Manager) Initialize(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.isTornDown() {
		return ErrTornDown
	}
	if m.initialized {
		return nil
	}
	m.initialized = true

	conn, err := m.connect(ctx, m.cfg.Credentials, m.logg)
	if stdErrors.Is(err, realtime.ErrMissingCredentials) {
		m.setDegraded("realtime credentials not configured")
		m.logg.Warn(ctx, "realtime credentials missing; live notifications disabled")
		return nil
	}
	if err != nil {
		m.setDegraded("realtime connection failed")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "connect realtime")
	}
	m.conn = conn
	m.logg.Info(ctx, "realtime connection established")
	return nil
}

// OnIdentityResolved applies identity directly and supersedes any resolution
// still in flight.
func (m *Manager) OnIdentityResolved(ctx context.Context, id identity.Identity) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	m.latestRequest++
	m.mu.Unlock()

	_, err := m.applyLocked(ctx, id)
	return err
}

// Refresh starts a new identity resolution and returns its request token.
// Only the resolution carrying the latest token may change the subscription.
func (m *Manager) Refresh(ctx context.Context) uint64 {
	m.mu.Lock()
	if m.torn {
		token := m.latestRequest
		m.mu.Unlock()
		return token
	}
	m.latestRequest++
	token := m.latestRequest
	// Add under mu so Teardown, which sets torn under mu, never races Wait.
	m.wg.Add(1)
	m.mu.Unlock()

	// The request that triggered the refresh may finish before resolution does.
	logCtx := m.logg.WithField(context.WithoutCancel(ctx), "request", token)
	go func() {
		defer m.wg.Done()
		m.resolve(logCtx, token)
	}()
	return token
}

// Wait blocks until every in-flight resolution has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) resolve(logCtx context.Context, token uint64) {
	ctx, cancel := context.WithTimeout(m.baseCtx, m.cfg.ResolveTimeout)
	defer cancel()

	outcome := metrics.OutcomeApplied
	id, err := m.resolver.Resolve(ctx)
	if err != nil {
		m.logg.Warn(logCtx, fmt.Sprintf("identity resolution failed; treating caller as unauthenticated: %v", err))
		id = identity.Anonymous
		outcome = metrics.OutcomeError
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	stale := token != m.latestRequest
	torn := m.torn
	m.mu.Unlock()
	if torn {
		return
	}
	if stale {
		m.metrics.IncResolution(metrics.OutcomeStale)
		m.logg.Debug(logCtx, "discarding stale identity resolution")
		return
	}

	changed, err := m.applyLocked(logCtx, id)
	if err != nil {
		m.logg.Error(logCtx, "apply identity", err)
		outcome = metrics.OutcomeError
	} else if !changed && outcome == metrics.OutcomeApplied {
		outcome = metrics.OutcomeNoop
	}
	m.metrics.IncResolution(outcome)
}

// applyLocked moves the subscription to the channel derived from id and
// reports whether anything changed. Caller holds m.lifecycle.
func (m *Manager) applyLocked(ctx context.Context, id identity.Identity) (bool, error) {
	if m.conn == nil {
		return false, nil
	}

	target := ""
	if id.HasTenant() {
		target = ChannelFor(id.TenantID)
	}

	m.mu.Lock()
	current := m.activeName
	m.mu.Unlock()
	if target == current {
		return false, nil
	}

	var errs error
	if m.active != nil {
		errs = multierr.Append(errs, m.unsubscribeLocked(ctx))
	}
	if target == "" {
		m.notify()
		return true, errs
	}

	ch, err := m.conn.Subscribe(ctx, target)
	if err != nil {
		m.notify()
		return true, multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe tenant channel"))
	}
	for event := range m.mappers {
		ch.Bind(event, m.handlerFor(event))
	}
	m.active = ch

	m.mu.Lock()
	m.activeName = target
	m.mu.Unlock()
	m.metrics.SetSubscribed(true)

	chCtx := m.logg.WithChannel(m.logg.WithTenantID(ctx, id.TenantID), target)
	m.logg.Info(chCtx, "subscribed to tenant channel")
	m.notify()
	return true, errs
}

// unsubscribeLocked drops the active channel. Local state is cleared even
// when the transport reports an error so no handler outlives its identity.
func (m *Manager) unsubscribeLocked(ctx context.Context) error {
	name := m.active.Name()
	m.active.UnbindAll()
	err := m.conn.Unsubscribe(ctx, name)
	m.active = nil

	m.mu.Lock()
	m.activeName = ""
	m.mu.Unlock()
	m.metrics.SetSubscribed(false)

	m.logg.Info(m.logg.WithChannel(ctx, name), "unsubscribed from tenant channel")
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unsubscribe "+name)
	}
	return nil
}

func (m *Manager) handlerFor(event string) realtime.Handler {
	return func(ctx context.Context, payload json.RawMessage) {
		m.HandleEvent(ctx, event, payload)
	}
}

// HandleEvent maps an inbound event into a notification and records it.
// Unknown events are ignored and reported as false.
func (m *Manager) HandleEvent(ctx context.Context, event string, payload json.RawMessage) (Notification, bool) {
	mapper, ok := m.mappers[event]
	m.metrics.IncEvent(event, ok)
	if !ok {
		m.logg.Debug(m.logg.WithField(ctx, "event", event), "ignoring unknown realtime event")
		return Notification{}, false
	}

	n, err := mapper(payload)
	if err != nil {
		m.logg.Warn(m.logg.WithField(ctx, "event", event), fmt.Sprintf("dropping malformed realtime event: %v", err))
		return Notification{}, false
	}
	n.ID = uuid.NewString()
	n.Event = event
	n.Style = n.Type.StyleKey()
	n.ReceivedAt = m.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.torn {
		return Notification{}, false
	}

	m.toasts = append(m.toasts, n)
	id := n.ID
	m.timers[id] = m.afterFunc(m.cfg.ToastTTL, func() { m.expireToast(id) })

	m.history = append([]Notification{n}, m.history...)
	if len(m.history) > m.cfg.HistoryLimit {
		m.history = m.history[:m.cfg.HistoryLimit]
	}
	m.unread++
	m.notifyLocked()
	return n, true
}

func (m *Manager) expireToast(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeToastLocked(id) {
		m.notifyLocked()
	}
}

// DismissToast removes an active toast before it expires.
func (m *Manager) DismissToast(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stop, ok := m.timers[id]; ok {
		stop()
	}
	if !m.removeToastLocked(id) {
		return false
	}
	m.metrics.IncDismissed()
	m.notifyLocked()
	return true
}

func (m *Manager) removeToastLocked(id string) bool {
	delete(m.timers, id)
	for i := range m.toasts {
		if m.toasts[i].ID == id {
			m.toasts = append(m.toasts[:i], m.toasts[i+1:]...)
			return true
		}
	}
	return false
}

// MarkAllRead resets the unread counter. History is untouched.
func (m *Manager) MarkAllRead() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unread = 0
	m.notifyLocked()
}

// ClearHistory empties the history log. Unread and toasts are untouched.
func (m *Manager) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
	m.notifyLocked()
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		Channel:        m.activeName,
		Degraded:       m.degraded,
		DegradedReason: m.degradedReason,
		Toasts:         append([]Notification{}, m.toasts...),
		History:        append([]Notification{}, m.history...),
		Unread:         m.unread,
	}
}

// Degraded reports whether live updates are disabled and why.
func (m *Manager) Degraded() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded, m.degradedReason
}

// Watch streams snapshots after every state change until ctx is done or the
// manager is torn down. Slow readers only see the latest snapshot.
func (m *Manager) Watch(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	m.mu.Lock()
	if m.torn {
		m.mu.Unlock()
		close(ch)
		return ch
	}
	id := m.nextWatcher
	m.nextWatcher++
	m.watchers[id] = ch
	ch <- m.snapshotLocked()
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-m.baseCtx.Done():
		}
		m.mu.Lock()
		if w, ok := m.watchers[id]; ok {
			delete(m.watchers, id)
			close(w)
		}
		m.mu.Unlock()
	}()
	return ch
}

func (m *Manager) notify() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifyLocked()
}

func (m *Manager) notifyLocked() {
	if len(m.watchers) == 0 {
		return
	}
	snap := m.snapshotLocked()
	for _, ch := range m.watchers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (m *Manager) setDegraded(reason string) {
	m.mu.Lock()
	m.degraded = true
	m.degradedReason = reason
	m.notifyLocked()
	m.mu.Unlock()
}

func (m *Manager) isTornDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.torn
}

// Teardown unsubscribes, disconnects and stops every timer and watcher. It is
// safe before Initialize and safe to call more than once.
func (m *Manager) Teardown() error {
	m.lifecycle.Lock()

	m.mu.Lock()
	if m.torn {
		m.mu.Unlock()
		m.lifecycle.Unlock()
		return nil
	}
	m.torn = true
	for id, stop := range m.timers {
		stop()
		delete(m.timers, id)
	}
	m.toasts = nil
	for id, ch := range m.watchers {
		delete(m.watchers, id)
		close(ch)
	}
	m.mu.Unlock()
	m.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	var errs error
	if m.active != nil {
		errs = multierr.Append(errs, m.unsubscribeLocked(ctx))
	}
	if m.conn != nil {
		if err := m.conn.Disconnect(); err != nil {
			errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "disconnect realtime"))
		}
		m.conn = nil
	}
	m.lifecycle.Unlock()

	m.wg.Wait()
	if errs == nil {
		m.logg.Info(ctx, "notification provider torn down")
	}
	return errs
}
