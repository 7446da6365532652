package fetch

import (
	"context"
	"sync"

	"github.com/conneroisu/safepreview/internal/errors"
	"github.com/conneroisu/safepreview/internal/fragment"
	"github.com/conneroisu/safepreview/internal/logging"
)

// Source holds the current fragment for one preview instance.
//
// Every SetLocator call is stamped with a generation. Only the result whose
// generation is still the latest when it completes is applied, so results
// land in issue order regardless of completion order. The previous fragment
// stays visible until the newer fetch completes. After Close no result is
// applied and no subscriber is called.
type Source struct {
	loader Loader
	logger logging.Logger

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	gen         uint64
	locator     string
	current     fragment.Fragment
	failed      bool
	inflight    context.CancelFunc
	done        map[uint64]chan struct{}
	subscribers map[int]func(fragment.Fragment)
	nextSubID   int
	closed      bool
}

// NewSource creates a Source that loads through loader.
func NewSource(loader Loader, logger logging.Logger) *Source {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	root, cancel := context.WithCancel(context.Background())

	return &Source{
		loader:      loader,
		logger:      logger.WithComponent("fragment_fetch"),
		root:        root,
		cancel:      cancel,
		done:        make(map[uint64]chan struct{}),
		subscribers: make(map[int]func(fragment.Fragment)),
	}
}

// SetLocator starts fetching locator and returns its generation. Setting the
// locator that is already current or in flight does not re-fetch, unless its
// last fetch failed. The prior in-flight fetch is cancelled. After Close it
// returns 0.
func (s *Source) SetLocator(ctx context.Context, locator string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}
	if s.gen > 0 && locator == s.locator && !s.failed {
		return s.gen
	}

	if s.inflight != nil {
		s.inflight()
	}

	s.gen++
	gen := s.gen
	s.locator = locator
	s.failed = false

	fetchCtx, cancel := context.WithCancel(s.root)
	stop := context.AfterFunc(ctx, cancel)
	s.inflight = cancel

	done := make(chan struct{})
	s.done[gen] = done

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		defer stop()
		defer cancel()

		s.run(fetchCtx, gen, locator)
	}()

	return gen
}

func (s *Source) run(ctx context.Context, gen uint64, locator string) {
	content, err := s.loader.Load(ctx, locator)

	s.mu.Lock()
	delete(s.done, gen)
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug(ctx, "Discarding stale fragment", "locator", locator, "generation", gen)

		return
	}

	next := fragment.Fragment{Content: content, Locator: locator}
	if err != nil {
		next.Content = ""
	}
	s.current = next
	s.failed = err != nil
	s.inflight = nil

	subs := make([]func(fragment.Fragment), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn(ctx, err, "Fragment fetch failed, rendering nothing", "locator", locator)
	} else {
		s.logger.Debug(ctx, "Fragment applied", "locator", locator, "bytes", len(content), "generation", gen)
	}

	for _, fn := range subs {
		fn(next)
	}
}

// Fragment returns the most recently applied fragment.
func (s *Source) Fragment() fragment.Fragment {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// Locator returns the most recently requested locator, which may still be
// in flight.
func (s *Source) Locator() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.locator
}

// Generation returns the latest issued generation.
func (s *Source) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.gen
}

// Subscribe registers fn to be called with each applied fragment. The
// returned function unsubscribes and is safe to call more than once.
func (s *Source) Subscribe(fn func(fragment.Fragment)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// Wait blocks until the fetch for gen has finished, whether it was applied,
// discarded or failed.
func (s *Source) Wait(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	ch, ok := s.done[gen]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Load is a convenience for one-shot callers: it sets locator, waits for
// the fetch and returns the resulting fragment.
func (s *Source) Load(ctx context.Context, locator string) (fragment.Fragment, error) {
	gen := s.SetLocator(ctx, locator)
	if gen == 0 {
		return fragment.Fragment{}, errors.NewInternalError(errors.ErrCodeSourceClosed, "source is closed", nil)
	}
	if err := s.Wait(ctx, gen); err != nil {
		return fragment.Fragment{}, err
	}

	return s.Fragment(), nil
}

// Close cancels any in-flight fetch, waits for it to return and drops all
// subscribers.
func (s *Source) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.subscribers = make(map[int]func(fragment.Fragment))
	s.mu.Unlock()
}
