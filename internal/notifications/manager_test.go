package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/eventix-edge/internal/identity"
	"github.com/angelmondragon/eventix-edge/pkg/enums"
	"github.com/angelmondragon/eventix-edge/pkg/logger"
	"github.com/angelmondragon/eventix-edge/pkg/realtime"
	"go.uber.org/multierr"
)

var testCreds = realtime.Credentials{Key: "app", Cluster: "memory://local"}

type fakeScheduler struct {
	mu      sync.Mutex
	pending map[int]func()
	next    int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{pending: make(map[int]func())}
}

func (s *fakeScheduler) AfterFunc(_ time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.pending[id] = f
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, ok := s.pending[id]
		delete(s.pending, id)
		return ok
	}
}

func (s *fakeScheduler) fireAll() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.pending))
	for id, f := range s.pending {
		fns = append(fns, f)
		delete(s.pending, id)
	}
	s.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func staticResolver(id identity.Identity, err error) identity.Resolver {
	return identity.ResolverFunc(func(context.Context) (identity.Identity, error) {
		return id, err
	})
}

func tenant(id string) identity.Identity {
	return identity.Identity{UserID: "user-" + id, TenantID: id, Authenticated: true}
}

func newTestManager(t *testing.T, resolver identity.Resolver, opts ...Option) (*Manager, *realtime.Memory, *fakeScheduler) {
	t.Helper()
	mem := realtime.NewMemory(logger.Nop())
	sched := newFakeScheduler()
	base := []Option{
		WithConnector(func(context.Context, realtime.Credentials, *logger.Logger) (realtime.Connection, error) {
			return mem, nil
		}),
		WithAfterFunc(sched.AfterFunc),
	}
	m, err := NewManager(Config{Credentials: testCreds}, resolver, logger.Nop(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() { _ = m.Teardown() })
	return m, mem, sched
}

func newOrder(buyer, event string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"buyerName":%q,"eventName":%q}`, buyer, event))
}

func TestNewManagerRequiresDependencies(t *testing.T) {
	if _, err := NewManager(Config{}, nil, logger.Nop()); err == nil {
		t.Fatal("expected error without resolver")
	}
	if _, err := NewManager(Config{}, staticResolver(identity.Anonymous, nil), nil); err == nil {
		t.Fatal("expected error without logger")
	}
}

func TestInitializeWithoutCredentialsDegrades(t *testing.T) {
	m, err := NewManager(Config{}, staticResolver(tenant("1"), nil), logger.Nop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("missing credentials must not fail: %v", err)
	}
	degraded, reason := m.Degraded()
	if !degraded || reason == "" {
		t.Fatalf("expected degraded mode with reason, got %v %q", degraded, reason)
	}
	if err := m.OnIdentityResolved(context.Background(), tenant("1")); err != nil {
		t.Fatalf("identity in degraded mode: %v", err)
	}
	if snap := m.Snapshot(); snap.Channel != "" || !snap.Degraded {
		t.Fatalf("expected no channel in degraded mode, got %+v", snap)
	}
	if err := m.Teardown(); err != nil {
		t.Fatalf("teardown: %v", err)
	}
}

func TestInitializeConnectFailureDegradesAndReturnsError(t *testing.T) {
	dialErr := errors.New("dial refused")
	m, _ := NewManager(Config{Credentials: testCreds}, staticResolver(identity.Anonymous, nil), logger.Nop(),
		WithConnector(func(context.Context, realtime.Credentials, *logger.Logger) (realtime.Connection, error) {
			return nil, dialErr
		}))
	err := m.Initialize(context.Background())
	if !errors.Is(err, dialErr) {
		t.Fatalf("expected dial error, got %v", err)
	}
	if degraded, _ := m.Degraded(); !degraded {
		t.Fatal("expected degraded after connect failure")
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	calls := 0
	mem := realtime.NewMemory(logger.Nop())
	m, _ := NewManager(Config{Credentials: testCreds}, staticResolver(identity.Anonymous, nil), logger.Nop(),
		WithConnector(func(context.Context, realtime.Credentials, *logger.Logger) (realtime.Connection, error) {
			calls++
			return mem, nil
		}))
	for i := 0; i < 3; i++ {
		if err := m.Initialize(context.Background()); err != nil {
			t.Fatalf("initialize: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single dial, got %d", calls)
	}
}

func TestOnIdentityResolvedKeepsAtMostOneSubscription(t *testing.T) {
	m, mem, _ := newTestManager(t, staticResolver(identity.Anonymous, nil))
	ctx := context.Background()

	sequence := []identity.Identity{
		tenant("1"), tenant("1"), tenant("2"), identity.Anonymous,
		tenant("3"), {UserID: "u", Authenticated: true}, tenant("2"), tenant("2"),
	}
	for i, id := range sequence {
		if err := m.OnIdentityResolved(ctx, id); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		want := ""
		if id.HasTenant() {
			want = "tenant-" + id.TenantID
		}
		subs := mem.Subscribed()
		if len(subs) > 1 {
			t.Fatalf("step %d: more than one subscription active: %v", i, subs)
		}
		if want == "" && len(subs) != 0 {
			t.Fatalf("step %d: expected no subscription, got %v", i, subs)
		}
		if want != "" && (len(subs) != 1 || subs[0] != want) {
			t.Fatalf("step %d: expected %s, got %v", i, want, subs)
		}
		if got := m.Snapshot().Channel; got != want {
			t.Fatalf("step %d: snapshot channel %q, want %q", i, got, want)
		}
	}
}

func TestBoundHandlersReceivePublishedEvents(t *testing.T) {
	m, mem, _ := newTestManager(t, staticResolver(identity.Anonymous, nil))
	ctx := context.Background()
	if err := m.OnIdentityResolved(ctx, tenant("42")); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if err := mem.Publish(ctx, "tenant-42", "new-order", map[string]string{"buyerName": "Rahim", "eventName": "Dhaka Jazz"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := mem.Publish(ctx, "tenant-42", "staff-invited", map[string]string{"fullName": "Karim Uddin"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := mem.Publish(ctx, "tenant-42", "event-created", map[string]string{"name": "Tech Summit"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := mem.Publish(ctx, "tenant-42", "ticket-scanned", map[string]string{"id": "1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	snap := m.Snapshot()
	if snap.Unread != 3 {
		t.Fatalf("expected 3 unread, got %d", snap.Unread)
	}
	if len(snap.History) != 3 || len(snap.Toasts) != 3 {
		t.Fatalf("expected 3 history and 3 toasts, got %d and %d", len(snap.History), len(snap.Toasts))
	}
	latest := snap.History[0]
	if latest.Title != "Event created" || latest.Message != "Tech Summit is now live" || latest.Type != enums.NotificationTypeSuccess {
		t.Fatalf("unexpected event-created notification %+v", latest)
	}
	invited := snap.History[1]
	if invited.Message != "Karim Uddin was invited to join your team" || invited.Type != enums.NotificationTypeInfo {
		t.Fatalf("unexpected staff-invited notification %+v", invited)
	}
	order := snap.History[2]
	if order.Title != "New order" || order.Message != "Rahim purchased tickets for Dhaka Jazz" {
		t.Fatalf("unexpected new-order notification %+v", order)
	}
	if snap.Toasts[0].ID != order.ID {
		t.Fatal("toasts must be ordered by arrival")
	}
}

func TestUnsubscribedChannelStopsDelivery(t *testing.T) {
	m, mem, _ := newTestManager(t, staticResolver(identity.Anonymous, nil))
	ctx := context.Background()
	_ = m.OnIdentityResolved(ctx, tenant("1"))
	_ = m.OnIdentityResolved(ctx, tenant("2"))

	_ = mem.Publish(ctx, "tenant-1", "new-order", newOrder("a", "b"))
	if got := m.Snapshot().Unread; got != 0 {
		t.Fatalf("old channel must not deliver, unread=%d", got)
	}
	_ = mem.Publish(ctx, "tenant-2", "new-order", newOrder("a", "b"))
	if got := m.Snapshot().Unread; got != 1 {
		t.Fatalf("expected delivery on new channel, unread=%d", got)
	}
}

func TestUnreadCountsEventsUntilMarkAllRead(t *testing.T) {
	m, _, _ := newTestManager(t, staticResolver(identity.Anonymous, nil))
	ctx := context.Background()

	const n = 17
	for i := 0; i < n; i++ {
		if _, ok := m.HandleEvent(ctx, "new-order", newOrder("buyer", fmt.Sprint(i))); !ok {
			t.Fatalf("event %d not recorded", i)
		}
	}
	if got := m.Snapshot().Unread; got != n {
		t.Fatalf("expected %d unread, got %d", n, got)
	}

	m.MarkAllRead()
	snap := m.Snapshot()
	if snap.Unread != 0 {
		t.Fatalf("expected 0 unread after mark all read, got %d", snap.Unread)
	}
	if len(snap.History) != n {
		t.Fatalf("mark all read must keep history, got %d", len(snap.History))
	}
}

func TestHistoryIsCappedMostRecentFirst(t *testing.T) {
	m, _, _ := newTestManager(t, staticResolver(identity.Anonymous, nil))
	ctx := context.Background()

	for i := 1; i <= 51; i++ {
		m.HandleEvent(ctx, "event-created", json.RawMessage(fmt.Sprintf(`{"name":"event-%d"}`, i)))
	}
	snap := m.Snapshot()
	if len(snap.History) != 50 {
		t.Fatalf("expected history of 50, got %d", len(snap.History))
	}
	if snap.History[0].Message != "event-51 is now live" {
		t.Fatalf("expected most recent first, got %q", snap.History[0].Message)
	}
	if last := snap.History[49].Message; last != "event-2 is now live" {
		t.Fatalf("expected oldest evicted, last entry %q", last)
	}
	if snap.Unread != 51 {
		t.Fatalf("unread counts every event, got %d", snap.Unread)
	}
}

func TestClearHistoryKeepsUnreadAndToasts(t *testing.T) {
	m, _, _ := newTestManager(t, staticResolver(identity.Anonymous, nil))
	ctx := context.Background()
	m.HandleEvent(ctx, "new-order", newOrder("a", "b"))
	m.HandleEvent(ctx, "staff-invited", json.RawMessage(`{"fullName":"c"}`))

	m.ClearHistory()
	snap := m.Snapshot()
	if len(snap.History) != 0 {
		t.Fatalf("expected empty history, got %d", len(snap.History))
	}
	if snap.Unread != 2 {
		t.Fatalf("clear history must keep unread, got %d", snap.Unread)
	}
	if len(snap.Toasts) != 2 {
		t.Fatalf("clear history must keep toasts, got %d", len(snap.Toasts))
	}
}

func TestToastsExpireAfterTTL(t *testing.T) {
	m, _, sched := newTestManager(t, staticResolver(identity.Anonymous, nil))
	ctx := context.Background()
	m.HandleEvent(ctx, "new-order", newOrder("a", "b"))
	m.HandleEvent(ctx, "new-order", newOrder("c", "d"))
	if sched.count() != 2 {
		t.Fatalf("expected 2 scheduled expiries, got %d", sched.count())
	}

	sched.fireAll()
	snap := m.Snapshot()
	if len(snap.Toasts) != 0 {
		t.Fatalf("expected toasts to expire, got %d", len(snap.Toasts))
	}
	if len(snap.History) != 2 || snap.Unread != 2 {
		t.Fatalf("expiry must not touch history or unread, got %+v", snap)
	}
}

func TestDismissToastRemovesSpecificInstance(t *testing.T) {
	m, _, sched := newTestManager(t, staticResolver(identity.Anonymous, nil))
	ctx := context.Background()
	first, _ := m.HandleEvent(ctx, "new-order", newOrder("a", "b"))
	second, _ := m.HandleEvent(ctx, "new-order", newOrder("a", "b"))

	if !m.DismissToast(first.ID) {
		t.Fatal("expected dismissal of active toast")
	}
	if m.DismissToast(first.ID) {
		t.Fatal("second dismissal must report false")
	}
	if m.DismissToast("missing") {
		t.Fatal("unknown toast must report false")
	}
	snap := m.Snapshot()
	if len(snap.Toasts) != 1 || snap.Toasts[0].ID != second.ID {
		t.Fatalf("expected only the second toast, got %+v", snap.Toasts)
	}
	if sched.count() != 1 {
		t.Fatalf("dismissal must cancel its timer, pending=%d", sched.count())
	}
}

func TestHandleEventIgnoresUnknownAndMalformed(t *testing.T) {
	m, _, _ := newTestManager(t, staticResolver(identity.Anonymous, nil))
	ctx := context.Background()
	if _, ok := m.HandleEvent(ctx, "refund-issued", json.RawMessage(`{}`)); ok {
		t.Fatal("unknown events must be ignored")
	}
	if _, ok := m.HandleEvent(ctx, "new-order", json.RawMessage(`{not json`)); ok {
		t.Fatal("malformed payload must be dropped")
	}
	if got := m.Snapshot().Unread; got != 0 {
		t.Fatalf("expected no unread, got %d", got)
	}
}

func TestWithEventMapperExtendsDispatchTable(t *testing.T) {
	mapper := func(payload json.RawMessage) (Notification, error) {
		return Notification{Title: "Refund", Message: "refund issued", Type: enums.NotificationTypeWarning}, nil
	}
	m, mem, _ := newTestManager(t, staticResolver(identity.Anonymous, nil), WithEventMapper("refund-issued", mapper))
	ctx := context.Background()
	_ = m.OnIdentityResolved(ctx, tenant("9"))
	_ = mem.Publish(ctx, "tenant-9", "refund-issued", nil)

	snap := m.Snapshot()
	if len(snap.History) != 1 {
		t.Fatalf("expected custom event recorded, got %d", len(snap.History))
	}
	if got := snap.History[0].Style; got != "warming" {
		t.Fatalf("expected warning style key, got %q", got)
	}
}

func TestRefreshAppliesResolvedIdentity(t *testing.T) {
	m, mem, _ := newTestManager(t, staticResolver(tenant("5"), nil))
	m.Refresh(context.Background())
	m.Wait()
	if subs := mem.Subscribed(); len(subs) != 1 || subs[0] != "tenant-5" {
		t.Fatalf("expected tenant-5 subscription, got %v", subs)
	}
}

func TestRefreshErrorTearsDownSubscription(t *testing.T) {
	m, mem, _ := newTestManager(t, staticResolver(identity.Identity{}, errors.New("backend down")))
	ctx := context.Background()
	if err := m.OnIdentityResolved(ctx, tenant("1")); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	m.Refresh(ctx)
	m.Wait()
	if subs := mem.Subscribed(); len(subs) != 0 {
		t.Fatalf("failed resolution must drop the subscription, got %v", subs)
	}
	if got := m.Snapshot().Channel; got != "" {
		t.Fatalf("expected no channel, got %q", got)
	}
}

type resolveCall struct {
	reply chan identity.Identity
}

// gatedResolver blocks each Resolve until the test replies.
type gatedResolver struct {
	calls chan resolveCall
}

func (g *gatedResolver) Resolve(ctx context.Context) (identity.Identity, error) {
	call := resolveCall{reply: make(chan identity.Identity, 1)}
	g.calls <- call
	select {
	case id := <-call.reply:
		return id, nil
	case <-ctx.Done():
		return identity.Anonymous, ctx.Err()
	}
}

func awaitCall(t *testing.T, g *gatedResolver) resolveCall {
	t.Helper()
	select {
	case call := <-g.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resolve call")
	}
	return resolveCall{}
}

func TestStaleResolutionIsDiscarded(t *testing.T) {
	gate := &gatedResolver{calls: make(chan resolveCall)}
	m, mem, _ := newTestManager(t, gate)
	ctx := context.Background()

	first := m.Refresh(ctx)
	older := awaitCall(t, gate)
	second := m.Refresh(ctx)
	newer := awaitCall(t, gate)
	if second <= first {
		t.Fatalf("request tokens must increase, got %d then %d", first, second)
	}

	newer.reply <- tenant("2")
	older.reply <- tenant("1")
	m.Wait()

	if subs := mem.Subscribed(); len(subs) != 1 || subs[0] != "tenant-2" {
		t.Fatalf("latest request must win, got %v", subs)
	}
}

func TestStaleResolutionArrivingFirstIsDiscarded(t *testing.T) {
	gate := &gatedResolver{calls: make(chan resolveCall)}
	m, mem, _ := newTestManager(t, gate)
	ctx := context.Background()

	m.Refresh(ctx)
	older := awaitCall(t, gate)
	m.Refresh(ctx)
	newer := awaitCall(t, gate)

	older.reply <- tenant("1")
	// Give the stale result a chance to be applied if the token check were missing.
	time.Sleep(20 * time.Millisecond)
	if subs := mem.Subscribed(); len(subs) != 0 {
		t.Fatalf("stale result must not subscribe, got %v", subs)
	}

	newer.reply <- identity.Anonymous
	m.Wait()
	if subs := mem.Subscribed(); len(subs) != 0 {
		t.Fatalf("expected no subscription, got %v", subs)
	}
}

func TestWatchReceivesLatestSnapshot(t *testing.T) {
	m, _, _ := newTestManager(t, staticResolver(identity.Anonymous, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := m.Watch(ctx)
	initial := <-updates
	if initial.Unread != 0 {
		t.Fatalf("expected initial snapshot, got %+v", initial)
	}

	m.HandleEvent(context.Background(), "new-order", newOrder("a", "b"))
	m.HandleEvent(context.Background(), "new-order", newOrder("c", "d"))
	select {
	case snap := <-updates:
		if snap.Unread != 2 {
			t.Fatalf("expected latest snapshot with 2 unread, got %d", snap.Unread)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}

	cancel()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel not closed after cancel")
		}
	}
}

func TestTeardownIsSafeAndIdempotent(t *testing.T) {
	m, err := NewManager(Config{Credentials: testCreds}, staticResolver(identity.Anonymous, nil), logger.Nop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if err := m.Teardown(); err != nil {
		t.Fatalf("teardown before initialize: %v", err)
	}
	if err := m.Teardown(); err != nil {
		t.Fatalf("second teardown: %v", err)
	}
	if err := m.Initialize(context.Background()); !errors.Is(err, ErrTornDown) {
		t.Fatalf("expected ErrTornDown, got %v", err)
	}
}

func TestRefreshRacingTeardown(t *testing.T) {
	var calls atomic.Int64
	resolver := identity.ResolverFunc(func(context.Context) (identity.Identity, error) {
		calls.Add(1)
		return tenant("7"), nil
	})
	m, _, _ := newTestManager(t, resolver)

	var callers sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		callers.Add(1)
		go func() {
			defer callers.Done()
			<-start
			m.Refresh(context.Background())
		}()
	}
	close(start)
	if err := m.Teardown(); err != nil {
		t.Fatalf("teardown: %v", err)
	}
	callers.Wait()
	m.Wait()

	before := calls.Load()
	m.Refresh(context.Background())
	m.Wait()
	if got := calls.Load(); got != before {
		t.Fatalf("refresh after teardown resolved identity: %d -> %d", before, got)
	}
	if snap := m.Snapshot(); snap.Channel != "" {
		t.Fatalf("torn down manager still subscribed to %q", snap.Channel)
	}
}

func TestTeardownUnsubscribesAndDisconnects(t *testing.T) {
	m, mem, sched := newTestManager(t, staticResolver(identity.Anonymous, nil))
	ctx := context.Background()
	_ = m.OnIdentityResolved(ctx, tenant("3"))
	m.HandleEvent(ctx, "new-order", newOrder("a", "b"))
	updates := m.Watch(ctx)

	if err := m.Teardown(); err != nil {
		t.Fatalf("teardown: %v", err)
	}
	if !mem.Closed() {
		t.Fatal("expected connection closed")
	}
	if subs := mem.Subscribed(); len(subs) != 0 {
		t.Fatalf("expected no subscriptions, got %v", subs)
	}
	if sched.count() != 0 {
		t.Fatalf("expected timers stopped, pending=%d", sched.count())
	}
	for range updates {
	}
	if err := m.Teardown(); err != nil {
		t.Fatalf("second teardown: %v", err)
	}
}

type failingConnection struct {
	*realtime.Memory
}

func (f failingConnection) Unsubscribe(context.Context, string) error {
	return errors.New("unsubscribe failed")
}

func (f failingConnection) Disconnect() error {
	return errors.New("disconnect failed")
}

func TestTeardownCombinesErrors(t *testing.T) {
	conn := failingConnection{Memory: realtime.NewMemory(logger.Nop())}
	m, _ := NewManager(Config{Credentials: testCreds}, staticResolver(identity.Anonymous, nil), logger.Nop(),
		WithConnector(func(context.Context, realtime.Credentials, *logger.Logger) (realtime.Connection, error) {
			return conn, nil
		}))
	ctx := context.Background()
	if err := m.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	_ = m.OnIdentityResolved(ctx, tenant("1"))

	err := m.Teardown()
	if err == nil {
		t.Fatal("expected combined error")
	}
	if errs := multierr.Errors(err); len(errs) != 2 {
		t.Fatalf("expected unsubscribe and disconnect errors, got %v", errs)
	}
	for _, want := range []string{"unsubscribe", "disconnect"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %q", want, err.Error())
		}
	}
	if got := m.Snapshot().Channel; got != "" {
		t.Fatalf("channel must be cleared even on failure, got %q", got)
	}
}

func TestChannelFor(t *testing.T) {
	if got := ChannelFor(" 42 "); got != "tenant-42" {
		t.Fatalf("unexpected channel %q", got)
	}
	if got := ChannelFor(""); got != "" {
		t.Fatalf("expected empty channel, got %q", got)
	}
}
