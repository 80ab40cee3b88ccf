package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crowdfund/backend/internal/models"
)

type tempErr struct{}

func (tempErr) Error() string   { return "temporary" }
func (tempErr) Temporary() bool { return true }

type fakeSource struct {
	mu    sync.Mutex
	calls atomic.Int32
	list  []models.Campaign
	errs  []error
	gate  chan struct{}
	// started is signalled when a fetch begins.
	started chan struct{}
}

func (f *fakeSource) Campaigns(ctx context.Context) ([]models.Campaign, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return append([]models.Campaign(nil), f.list...), nil
}

func (f *fakeSource) set(list ...models.Campaign) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = list
}

func newTestLayer(src Source, attempts int) *Layer {
	l := New(src, Options{RetryAttempts: attempts, RetryBase: time.Millisecond})
	l.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return l
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	src := &fakeSource{}
	src.set(campaign(0, "a", 1, 10, 0, true))
	l := newTestLayer(src, 1)
	ctx := context.Background()

	if _, err := l.Cached(); !errors.Is(err, ErrStaleIdentity) {
		t.Fatalf("Cached before refresh: err = %v, want ErrStaleIdentity", err)
	}

	first, err := l.Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	src.set(campaign(0, "a", 1, 10, 0, true), campaign(1, "b", 2, 10, 0, true))
	second, err := l.Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if len(first.Campaigns) != 1 {
		t.Errorf("first snapshot changed: %d campaigns", len(first.Campaigns))
	}
	if len(second.Campaigns) != 2 {
		t.Errorf("second snapshot = %d campaigns, want 2", len(second.Campaigns))
	}
	if cur, _ := l.Cached(); cur != second {
		t.Error("Cached does not return the latest snapshot")
	}
}

func TestViewOpsDoNotRead(t *testing.T) {
	src := &fakeSource{}
	src.set(
		campaign(0, "charity", 1, 10, 0, true),
		campaign(1, "education", 2, 10, 0, true),
	)
	l := newTestLayer(src, 1)
	ctx := context.Background()

	if _, err := l.View(ctx); err != nil {
		t.Fatal(err)
	}
	l.SetFilter("education", StatusAll)
	l.SetSort(SortOldest)
	l.SetSearch("")
	got, err := l.View(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("view = %v, want [1]", ids(got))
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("source calls = %d, want 1", n)
	}
}

func TestConcurrentRefreshIsCoalesced(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{}), started: make(chan struct{}, 16)}
	src.set(campaign(0, "a", 1, 10, 0, true))
	l := newTestLayer(src, 1)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*Snapshot, callers)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = l.Refresh(ctx)
	}()
	<-src.started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = l.Refresh(ctx)
		}()
	}
	// Let the late callers join the in-flight call before releasing it.
	time.Sleep(20 * time.Millisecond)

	// SetSort must not block behind the in-flight refresh.
	done := make(chan struct{})
	go func() {
		l.SetSort(SortTarget)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SetSort blocked by refresh")
	}

	close(src.gate)
	wg.Wait()

	if n := src.calls.Load(); n != 1 {
		t.Errorf("source calls = %d, want 1", n)
	}
	for i, r := range results {
		if r != results[0] || r == nil {
			t.Errorf("caller %d got a different snapshot", i)
		}
	}
}

func TestCanceledCallerDoesNotFailSharedRefresh(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{}), started: make(chan struct{}, 4)}
	src.set(campaign(0, "a", 1, 10, 0, true))
	l := newTestLayer(src, 1)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := l.Refresh(firstCtx)
		firstErr <- err
	}()
	<-src.started

	type result struct {
		snap *Snapshot
		err  error
	}
	second := make(chan result, 1)
	go func() {
		s, err := l.Refresh(context.Background())
		second <- result{s, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("canceled caller: err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("canceled caller kept waiting")
	}

	close(src.gate)
	select {
	case r := <-second:
		if r.err != nil || r.snap == nil || len(r.snap.Campaigns) != 1 {
			t.Fatalf("waiting caller = %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("waiting caller never got the shared refresh")
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("source calls = %d, want 1", n)
	}
	if _, err := l.Cached(); err != nil {
		t.Errorf("shared refresh was not committed: %v", err)
	}
}

func TestRefreshTimeoutBoundsSharedFetch(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{})}
	l := New(src, Options{RefreshTimeout: 20 * time.Millisecond})

	_, err := l.Refresh(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestIdentityChangeForcesRefresh(t *testing.T) {
	src := &fakeSource{}
	src.set(campaign(0, "a", 1, 10, 0, true))
	l := newTestLayer(src, 1)
	ctx := context.Background()

	alice := Identity{Address: "0:aa", Network: "-3"}
	l.SetIdentity(alice)
	if _, err := l.View(ctx); err != nil {
		t.Fatal(err)
	}

	l.SetIdentity(alice)
	if _, err := l.Cached(); err != nil {
		t.Errorf("same identity invalidated the snapshot: %v", err)
	}

	l.SetIdentity(Identity{Address: "0:aa", Network: "-239"})
	if _, err := l.Cached(); !errors.Is(err, ErrStaleIdentity) {
		t.Fatalf("Cached after network change: err = %v, want ErrStaleIdentity", err)
	}

	src.set(campaign(0, "a", 1, 10, 0, true), campaign(1, "a", 2, 10, 0, true))
	got, err := l.View(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("view after identity change = %d campaigns, want fresh 2", len(got))
	}
	s, _ := l.Cached()
	if s.Identity.Network != "-239" {
		t.Errorf("snapshot identity = %+v", s.Identity)
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("source calls = %d, want 2", n)
	}
}

func TestRefreshDuringIdentityChangeIsDiscarded(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{}), started: make(chan struct{}, 4)}
	src.set(campaign(0, "a", 1, 10, 0, true))
	l := newTestLayer(src, 1)
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() {
		_, err := l.Refresh(ctx)
		errc <- err
	}()
	<-src.started

	l.SetIdentity(Identity{Address: "0:bb"})
	close(src.gate)

	if err := <-errc; !errors.Is(err, ErrStaleIdentity) {
		t.Fatalf("in-flight refresh: err = %v, want ErrStaleIdentity", err)
	}
	if _, err := l.Cached(); !errors.Is(err, ErrStaleIdentity) {
		t.Errorf("stale fetch was published: %v", err)
	}
}

func TestRetry(t *testing.T) {
	rejected := errors.New("rejected")

	tests := []struct {
		name      string
		attempts  int
		errs      []error
		wantErr   error
		wantCalls int32
	}{
		{"recovers after temporary errors", 3, []error{tempErr{}, tempErr{}}, nil, 3},
		{"gives up", 2, []error{tempErr{}, tempErr{}, tempErr{}}, tempErr{}, 2},
		{"permanent error is not retried", 5, []error{rejected}, rejected, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{errs: tt.errs}
			l := newTestLayer(src, tt.attempts)

			_, err := l.Refresh(context.Background())
			if tt.wantErr == nil && err != nil {
				t.Fatalf("err = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if n := src.calls.Load(); n != tt.wantCalls {
				t.Errorf("calls = %d, want %d", n, tt.wantCalls)
			}
		})
	}
}

func TestPollerStop(t *testing.T) {
	var calls atomic.Int32
	p := StartPoller(context.Background(), time.Millisecond, func(context.Context) {
		calls.Add(1)
	})

	deadline := time.After(time.Second)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("poller did not tick")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	p.Stop()
	after := calls.Load()
	time.Sleep(10 * time.Millisecond)
	if n := calls.Load(); n != after {
		t.Errorf("callback ran after Stop: %d -> %d", after, n)
	}
	p.Stop()
}

func TestPollerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := StartPoller(ctx, time.Hour, func(context.Context) {})
	cancel()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("poller did not exit after cancel")
	}
}
