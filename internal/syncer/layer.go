// Package syncer keeps a client-side snapshot of the campaign list and
// derives filtered, sorted views from it without further reads.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crowdfund/backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrStaleIdentity means the snapshot was fetched for an identity that is no
// longer current.
var ErrStaleIdentity = errors.New("snapshot belongs to a previous identity")

// Source is the full-list read the layer refreshes from.
type Source interface {
	Campaigns(ctx context.Context) ([]models.Campaign, error)
}

// Identity is the caller's address and network. Changing either invalidates
// the snapshot.
type Identity struct {
	Address string
	Network string
}

// Snapshot is an immutable copy of the campaign list. Consumers must not
// modify it.
type Snapshot struct {
	Campaigns []models.Campaign
	Identity  Identity
	Epoch     uint64
	FetchedAt time.Time
}

// session pairs an identity with the epoch it started.
type session struct {
	identity Identity
	epoch    uint64
}

// DefaultRefreshTimeout bounds one shared refresh, retries included.
const DefaultRefreshTimeout = 30 * time.Second

type Options struct {
	RetryAttempts  int
	RetryBase      time.Duration
	RefreshTimeout time.Duration
	Logger         *zap.Logger
}

// Layer is safe for concurrent use. View state changes never wait for a
// refresh; at most one refresh per identity epoch runs at a time.
type Layer struct {
	src   Source
	group singleflight.Group

	snap atomic.Pointer[Snapshot]
	sess atomic.Pointer[session]

	viewMu sync.Mutex
	view   ViewState

	attempts int
	base     time.Duration
	timeout  time.Duration
	log      *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func New(src Source, opts Options) *Layer {
	l := &Layer{
		src:      src,
		attempts: max(opts.RetryAttempts, 1),
		base:     opts.RetryBase,
		timeout:  opts.RefreshTimeout,
		log:      opts.Logger,
		sleep:    sleepCtx,
	}
	if l.base <= 0 {
		l.base = 250 * time.Millisecond
	}
	if l.timeout <= 0 {
		l.timeout = DefaultRefreshTimeout
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	l.sess.Store(&session{})
	return l
}

// SetIdentity switches the caller. A different identity bumps the epoch, so
// every read started afterwards refreshes first.
func (l *Layer) SetIdentity(id Identity) {
	for {
		cur := l.sess.Load()
		if cur.identity == id {
			return
		}
		next := &session{identity: id, epoch: cur.epoch + 1}
		if l.sess.CompareAndSwap(cur, next) {
			l.log.Debug("identity changed", zap.String("address", id.Address), zap.String("network", id.Network), zap.Uint64("epoch", next.epoch))
			return
		}
	}
}

func (l *Layer) Identity() Identity { return l.sess.Load().identity }

// Refresh re-reads the full list and publishes it as the new snapshot.
// Concurrent calls for the same epoch share one fetch. The shared fetch is
// bounded by the layer's refresh timeout, not by any caller's ctx: a caller
// that gives up returns ctx.Err() while the others keep waiting. A fetch that
// finishes after an identity change is discarded with ErrStaleIdentity.
func (l *Layer) Refresh(ctx context.Context) (*Snapshot, error) {
	sess := l.sess.Load()
	epoch := sess.epoch
	ch := l.group.DoChan(strconv.FormatUint(epoch, 10), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()

		campaigns, err := l.fetch(fctx)
		if err != nil {
			return nil, err
		}
		s := &Snapshot{Campaigns: campaigns, Identity: sess.identity, Epoch: epoch, FetchedAt: time.Now()}
		if !l.publish(s) {
			return nil, ErrStaleIdentity
		}
		l.log.Debug("snapshot refreshed", zap.Int("campaigns", len(campaigns)), zap.Uint64("epoch", epoch))
		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			l.log.Debug("refresh coalesced", zap.Uint64("epoch", epoch))
		}
		return res.Val.(*Snapshot), nil
	}
}

// publish stores s unless the identity moved on or a newer snapshot is
// already committed.
func (l *Layer) publish(s *Snapshot) bool {
	for {
		if l.sess.Load().epoch != s.Epoch {
			return false
		}
		cur := l.snap.Load()
		if cur != nil && cur.Epoch > s.Epoch {
			return false
		}
		if l.snap.CompareAndSwap(cur, s) {
			return true
		}
	}
}

// fetch retries temporary source errors with exponential backoff.
func (l *Layer) fetch(ctx context.Context) ([]models.Campaign, error) {
	var lastErr error
	for attempt := 0; attempt < l.attempts; attempt++ {
		if attempt > 0 {
			delay := l.base << (attempt - 1)
			if err := l.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		campaigns, err := l.src.Campaigns(ctx)
		if err == nil {
			return campaigns, nil
		}
		if !temporary(err) {
			return nil, err
		}
		lastErr = err
		l.log.Warn("refresh failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return nil, fmt.Errorf("refresh failed after %d attempts: %w", l.attempts, lastErr)
}

func temporary(err error) bool {
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Cached returns the committed snapshot without reading the source. It
// fails with ErrStaleIdentity after an identity change.
func (l *Layer) Cached() (*Snapshot, error) {
	s := l.snap.Load()
	if s == nil || s.Epoch != l.sess.Load().epoch {
		return nil, ErrStaleIdentity
	}
	return s, nil
}

// Snapshot returns a current snapshot, refreshing when none exists for the
// current identity.
func (l *Layer) Snapshot(ctx context.Context) (*Snapshot, error) {
	for {
		s, err := l.Cached()
		if err == nil {
			return s, nil
		}
		s, err = l.Refresh(ctx)
		if errors.Is(err, ErrStaleIdentity) {
			continue
		}
		return s, err
	}
}

// View applies the current view state to a current snapshot.
func (l *Layer) View(ctx context.Context) ([]models.Campaign, error) {
	s, err := l.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return Apply(s.Campaigns, l.ViewState()), nil
}

func (l *Layer) ViewState() ViewState {
	l.viewMu.Lock()
	defer l.viewMu.Unlock()
	return l.view
}

func (l *Layer) SetFilter(category, status string) {
	l.viewMu.Lock()
	defer l.viewMu.Unlock()
	l.view.Category = category
	l.view.Status = status
}

func (l *Layer) SetSort(key string) {
	l.viewMu.Lock()
	defer l.viewMu.Unlock()
	l.view.Sort = key
}

func (l *Layer) SetSearch(term string) {
	l.viewMu.Lock()
	defer l.viewMu.Unlock()
	l.view.Search = term
}
