// Package paging resolves successive pages of a paginated search endpoint.
//
// A Loader keeps a requested page count (its size), an explicit state per page
// key and the ordered list of resolved pages. Keys come from a KeyFunc, so the
// caller decides where pagination stops, and every key carries its query so a
// new query never sees pages cached for an old one.
package paging

import (
	"context"
	"sync"

	"github.com/rubiojr/movieei/pkg/core"
	"github.com/rubiojr/movieei/pkg/log"
)

// State is the lifecycle position of a single page key.
type State int

const (
	Idle State = iota
	Fetching
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// KeyFunc maps a 0-based page index and the previous page (nil for the first
// page, or when it is not resolved yet in parallel mode) to the key to fetch.
// Returning false stops pagination at index.
type KeyFunc func(index int, prev *core.Page) (core.PageKey, bool)

// Fetcher loads a single page.
type Fetcher interface {
	Fetch(ctx context.Context, key core.PageKey) (*core.Page, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, key core.PageKey) (*core.Page, error)

func (f FetcherFunc) Fetch(ctx context.Context, key core.PageKey) (*core.Page, error) {
	return f(ctx, key)
}

// Option configures a Loader.
type Option func(*Loader)

// WithParallel computes keys for every requested page at once instead of
// waiting for the previous page. Pages may then resolve out of order; Pages
// still only exposes the resolved prefix.
func WithParallel() Option {
	return func(l *Loader) { l.parallel = true }
}

// WithRevalidateFirstPage makes Revalidate refetch page 1 as well.
func WithRevalidateFirstPage(enabled bool) Option {
	return func(l *Loader) { l.revalidateFirst = enabled }
}

// WithOnChange registers fn to run after every state transition.
func WithOnChange(fn func()) Option {
	return func(l *Loader) { l.onChange = append(l.onChange, fn) }
}

type entry struct {
	state State
	page  *core.Page
	err   error
}

// View is a consistent snapshot of a Loader.
type View struct {
	Pages      []*core.Page
	Size       int
	Validating bool
	Err        error
}

// Loader is safe for concurrent use.
type Loader struct {
	keyFn           KeyFunc
	fetcher         Fetcher
	parallel        bool
	revalidateFirst bool
	onChange        []func()
	logger          *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	idle     *sync.Cond
	size     int
	gen      uint64
	first    core.PageKey
	hasFirst bool
	entries  map[core.PageKey]*entry
	keys     []core.PageKey
	inflight int
	closed   bool
}

// NewLoader returns an idle Loader. Nothing is fetched until Refresh is called.
// Fetches run with a context derived from ctx and are cancelled by Close.
func NewLoader(ctx context.Context, keyFn KeyFunc, fetcher Fetcher, opts ...Option) *Loader {
	ctx, cancel := context.WithCancel(ctx)
	l := &Loader{
		keyFn:   keyFn,
		fetcher: fetcher,
		logger:  log.ForService("paging"),
		ctx:     ctx,
		cancel:  cancel,
		size:    1,
		entries: make(map[core.PageKey]*entry),
	}
	l.idle = sync.NewCond(&l.mu)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Refresh re-evaluates the first key. When it changed, the key space is
// reset: size goes back to 1, cached pages are dropped and responses still in
// flight for the old keys are discarded when they arrive.
func (l *Loader) Refresh() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.advanceLocked()
	l.mu.Unlock()
	l.notify()
}

// resetIfMovedLocked starts a new key space when the first key no longer
// matches the current one. Every path that may start fetches goes through it,
// so no fetch for a new key space runs under an old generation.
func (l *Loader) resetIfMovedLocked() {
	key, ok := l.keyFn(0, nil)
	if ok == l.hasFirst && key == l.first {
		return
	}
	l.gen++
	l.size = 1
	l.entries = make(map[core.PageKey]*entry)
	l.keys = nil
	l.first, l.hasFirst = key, ok
	if ok {
		l.logger.Debugf("new key space %s (generation %d)", key, l.gen)
	}
}

// Size returns the requested page count.
func (l *Loader) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// SetSize requests pages 1..n. Pages already fetching are not fetched again.
func (l *Loader) SetSize(n int) {
	if n < 1 {
		n = 1
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.size = n
	l.advanceLocked()
	l.mu.Unlock()
	l.notify()
}

// CompareAndGrow increments size by one, but only if it still equals expected
// and no page is being fetched. It reports whether the size changed.
func (l *Loader) CompareAndGrow(expected int) bool {
	l.mu.Lock()
	if l.closed || l.size != expected || l.validatingLocked() {
		l.mu.Unlock()
		return false
	}
	l.size++
	l.advanceLocked()
	l.mu.Unlock()
	l.notify()
	return true
}

// Revalidate refetches pages that are already resolved, keeping their data
// visible meanwhile. Page 1 is skipped unless WithRevalidateFirstPage(true).
func (l *Loader) Revalidate() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	gen := l.gen
	l.advanceLocked()
	if gen != l.gen {
		// The key space moved; the new first page is already loading.
		l.mu.Unlock()
		l.notify()
		return
	}
	for i, key := range l.keys {
		if i == 0 && !l.revalidateFirst {
			continue
		}
		if e := l.entries[key]; e != nil && e.state == Resolved {
			l.startLocked(key, e)
		}
	}
	l.mu.Unlock()
	l.notify()
}

// Pages returns resolved pages by ascending page index. It stops at the first
// index that has no data yet, so a later page that arrived early stays hidden
// until every page before it is present.
func (l *Loader) Pages() []*core.Page {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pagesLocked()
}

// Validating reports whether any page of the current key space is fetching.
func (l *Loader) Validating() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.validatingLocked()
}

// Err returns the error of the lowest failed page, if any.
func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errLocked()
}

// View returns pages, size, validation status and error taken atomically.
func (l *Loader) View() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return View{
		Pages:      l.pagesLocked(),
		Size:       l.size,
		Validating: l.validatingLocked(),
		Err:        l.errLocked(),
	}
}

// status returns the state of key in the current key space.
func (l *Loader) status(key core.PageKey) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok {
		return e.state
	}
	return Idle
}

// Wait blocks until no fetch is in flight.
func (l *Loader) Wait() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.inflight > 0 {
		l.idle.Wait()
	}
}

// Close cancels in-flight fetches. Their results are discarded.
func (l *Loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.gen++
	l.mu.Unlock()
	l.cancel()
}

// advanceLocked resets the key space if the first key moved, then walks
// pages 0..size-1 and starts whatever fetch is needed.
// In sequential mode it stops at the first page that is not resolved, since
// the next key depends on it.
func (l *Loader) advanceLocked() {
	l.resetIfMovedLocked()
	l.keys = l.keys[:0]
	var prev *core.Page
	for i := 0; i < l.size; i++ {
		if i > 0 {
			prev = l.entries[l.keys[i-1]].page
			if prev == nil && !l.parallel {
				return
			}
		}
		key, ok := l.keyFn(i, prev)
		if !ok {
			return
		}
		l.keys = append(l.keys, key)

		e, ok := l.entries[key]
		if !ok {
			e = &entry{}
			l.entries[key] = e
		}
		switch e.state {
		case Idle:
			l.startLocked(key, e)
			if !l.parallel {
				return
			}
		case Fetching:
			if !l.parallel && e.page == nil {
				return
			}
		case Failed:
			return
		case Resolved:
		}
	}
}

func (l *Loader) startLocked(key core.PageKey, e *entry) {
	e.state = Fetching
	l.inflight++
	gen := l.gen
	l.logger.Debugf("fetching %s", key)
	go func() {
		page, err := l.fetcher.Fetch(l.ctx, key)
		l.complete(gen, key, page, err)
	}()
}

func (l *Loader) complete(gen uint64, key core.PageKey, page *core.Page, err error) {
	l.mu.Lock()
	l.inflight--
	l.idle.Broadcast()

	e, ok := l.entries[key]
	if gen != l.gen || l.closed || !ok {
		l.logger.Debugf("discarding stale response for %s", key)
		l.mu.Unlock()
		return
	}

	switch {
	case err != nil && e.page != nil:
		// A failed revalidation keeps the data it already had.
		e.state = Resolved
		e.err = err
	case err != nil:
		l.logger.Debugf("fetch %s failed: %v", key, err)
		e.state = Failed
		e.err = err
	default:
		if page == nil {
			page = &core.Page{}
		}
		e.state = Resolved
		e.page = page
		e.err = nil
	}

	l.advanceLocked()
	l.mu.Unlock()
	l.notify()
}

func (l *Loader) pagesLocked() []*core.Page {
	var pages []*core.Page
	for i, key := range l.keys {
		if i >= l.size {
			break
		}
		e := l.entries[key]
		if e == nil || e.page == nil || e.state == Failed {
			break
		}
		pages = append(pages, e.page)
	}
	return pages
}

func (l *Loader) validatingLocked() bool {
	for _, e := range l.entries {
		if e.state == Fetching {
			return true
		}
	}
	return false
}

func (l *Loader) errLocked() error {
	for _, key := range l.keys {
		if e := l.entries[key]; e != nil && e.err != nil {
			return e.err
		}
	}
	return nil
}

func (l *Loader) notify() {
	for _, fn := range l.onChange {
		fn()
	}
}
