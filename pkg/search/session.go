package search

import (
	"context"
	"sync"
	"time"

	"github.com/rubiojr/movieei/pkg/core"
	"github.com/rubiojr/movieei/pkg/debounce"
	"github.com/rubiojr/movieei/pkg/log"
	"github.com/rubiojr/movieei/pkg/paging"
	"github.com/rubiojr/movieei/pkg/realtime"
)

// DefaultDebounce is the quiet window before a typed term is searched.
const DefaultDebounce = 500 * time.Millisecond

// FetchFailedMessage is shown when a page could not be fetched at all.
const FetchFailedMessage = "Failed to fetch movies."

// Options configure a Session.
type Options struct {
	// Debounce is the idle window before a new term is searched.
	// Zero means DefaultDebounce.
	Debounce time.Duration

	// Type is the search type used in every page key. Empty means
	// core.DefaultType.
	Type string

	// InitialTerm is searched immediately, without waiting for the
	// debounce window.
	InitialTerm string

	// Parallel fetches all requested pages at once instead of one after
	// the other.
	Parallel bool

	// RevalidateFirstPage makes Revalidate refetch page 1 too.
	RevalidateFirstPage bool
}

// Snapshot is the externally visible state of a Session.
type Snapshot struct {
	SearchTerm   string       `json:"search_term"`
	Movies       []core.Movie `json:"movies"`
	TotalResults int          `json:"total_results"`
	HasMore      bool         `json:"has_more"`
	Loading      bool         `json:"loading"`
	Debouncing   bool         `json:"debouncing"`
	Error        string       `json:"error,omitempty"`
	Size         int          `json:"size"`
}

// Session is the search state of one client: the raw term, its debounced
// value and the pages loaded for it.
type Session struct {
	opts      Options
	loader    *paging.Loader
	debouncer *debounce.Debouncer[string]
	hub       *realtime.Hub[Snapshot]
	logger    *log.Logger

	mu        sync.RWMutex
	term      string
	debounced string

	// publishMu orders snapshot creation with delivery.
	publishMu sync.Mutex
}

// NewSession starts a session fetching through fetcher. If opts.InitialTerm
// is set its first page is requested right away.
func NewSession(ctx context.Context, fetcher paging.Fetcher, opts Options) *Session {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Type == "" {
		opts.Type = core.DefaultType
	}

	s := &Session{
		opts:      opts,
		hub:       realtime.NewHub[Snapshot](16),
		logger:    log.ForService("session"),
		term:      opts.InitialTerm,
		debounced: opts.InitialTerm,
	}

	loaderOpts := []paging.Option{paging.WithOnChange(s.publish)}
	if opts.Parallel {
		loaderOpts = append(loaderOpts, paging.WithParallel())
	}
	if opts.RevalidateFirstPage {
		loaderOpts = append(loaderOpts, paging.WithRevalidateFirstPage(true))
	}
	s.loader = paging.NewLoader(ctx, s.pageKey, fetcher, loaderOpts...)
	s.debouncer = debounce.New(opts.Debounce, s.applyTerm)
	s.loader.Refresh()
	return s
}

// pageKey stops on an empty term and after a page the upstream flagged as
// failed.
func (s *Session) pageKey(index int, prev *core.Page) (core.PageKey, bool) {
	s.mu.RLock()
	term := s.debounced
	s.mu.RUnlock()

	if term == "" {
		return core.PageKey{}, false
	}
	if prev != nil && prev.Failed() {
		return core.PageKey{}, false
	}
	return core.PageKey{Query: term, Page: index + 1, Type: s.opts.Type}, true
}

// SetSearchTerm records a new raw term. The search itself starts once the
// term has been stable for the debounce window.
func (s *Session) SetSearchTerm(term string) {
	s.mu.Lock()
	s.term = term
	s.mu.Unlock()

	s.debouncer.Push(term)
	s.publish()
}

func (s *Session) applyTerm(term string) {
	s.mu.Lock()
	if s.debounced == term {
		s.mu.Unlock()
		return
	}
	s.debounced = term
	s.mu.Unlock()

	s.logger.Debugf("searching %q", term)
	s.loader.Refresh()
}

// LoadMore requests one more page when more results exist and nothing is
// loading. It reports whether a page was requested. Calling it again before
// that page arrives is a no-op.
func (s *Session) LoadMore() bool {
	view := s.loader.View()
	if view.Validating || !Accumulate(view.Pages).HasMore {
		return false
	}
	return s.loader.CompareAndGrow(view.Size)
}

// Revalidate refetches the pages already shown, for instance when a client
// comes back after being away. Page 1 is kept unless RevalidateFirstPage is
// set.
func (s *Session) Revalidate() {
	s.loader.Revalidate()
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	term := s.term
	s.mu.RUnlock()

	view := s.loader.View()
	res := Accumulate(view.Pages)
	return Snapshot{
		SearchTerm:   term,
		Movies:       res.Movies,
		TotalResults: res.TotalResults,
		HasMore:      res.HasMore,
		Loading:      view.Validating,
		Debouncing:   s.debouncer.Pending(),
		Error:        errorMessage(view),
		Size:         view.Size,
	}
}

func errorMessage(view paging.View) string {
	if view.Err != nil {
		return FetchFailedMessage
	}
	if len(view.Pages) > 0 && view.Pages[0].Error != "" {
		return view.Pages[0].Error
	}
	return ""
}

// Subscribe returns a channel receiving a snapshot after every change.
// Slow subscribers miss intermediate snapshots.
func (s *Session) Subscribe() (uint64, <-chan Snapshot) {
	return s.hub.Register()
}

// Unsubscribe releases a subscription.
func (s *Session) Unsubscribe(id uint64) {
	s.hub.Unregister(id)
}

// Wait blocks until no page is being fetched.
func (s *Session) Wait() {
	s.loader.Wait()
}

// Close stops the debouncer, cancels fetches and closes all subscriptions.
func (s *Session) Close() {
	s.debouncer.Stop()
	s.loader.Close()
	s.hub.Close()
}

// publish takes the snapshot and broadcasts it under one lock, so the last
// snapshot delivered is never older than the last change.
func (s *Session) publish() {
	if s.hub.Size() == 0 {
		return
	}
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	s.hub.Broadcast(s.Snapshot())
}
