package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/safepreview/internal/fragment"
)

// gatedLoader blocks each locator until the test releases it. It ignores
// cancellation so completion order is fully controlled by the test.
type gatedLoader struct {
	mu    sync.Mutex
	gates map[string]chan string
}

func newGatedLoader(locators ...string) *gatedLoader {
	g := &gatedLoader{gates: make(map[string]chan string)}
	for _, l := range locators {
		g.gates[l] = make(chan string, 1)
	}

	return g
}

func (g *gatedLoader) Load(_ context.Context, locator string) (string, error) {
	g.mu.Lock()
	gate := g.gates[locator]
	g.mu.Unlock()

	return <-gate, nil
}

func (g *gatedLoader) release(locator, content string) {
	g.gates[locator] <- content
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func TestStaleResponseDiscarded(t *testing.T) {
	loader := newGatedLoader("/a.svg", "/b.svg")
	s := NewSource(loader, nil)
	ctx := waitCtx(t)

	genA := s.SetLocator(ctx, "/a.svg")
	genB := s.SetLocator(ctx, "/b.svg")
	require.Greater(t, genB, genA)

	loader.release("/b.svg", "<svg>B</svg>")
	require.NoError(t, s.Wait(ctx, genB))
	assert.Equal(t, "<svg>B</svg>", s.Fragment().Content)

	loader.release("/a.svg", "<svg>A</svg>")
	require.NoError(t, s.Wait(ctx, genA))

	got := s.Fragment()
	assert.Equal(t, "<svg>B</svg>", got.Content)
	assert.Equal(t, "/b.svg", got.Locator)

	s.Close()
}

func TestPreviousFragmentKeptUntilNewFetchCompletes(t *testing.T) {
	loader := newGatedLoader("/a.svg", "/b.svg")
	s := NewSource(loader, nil)
	ctx := waitCtx(t)

	genA := s.SetLocator(ctx, "/a.svg")
	loader.release("/a.svg", "A")
	require.NoError(t, s.Wait(ctx, genA))

	genB := s.SetLocator(ctx, "/b.svg")
	assert.Equal(t, "A", s.Fragment().Content)
	assert.Equal(t, "/b.svg", s.Locator())

	loader.release("/b.svg", "B")
	require.NoError(t, s.Wait(ctx, genB))
	assert.Equal(t, "B", s.Fragment().Content)

	s.Close()
}

func TestSameLocatorDoesNotRefetch(t *testing.T) {
	var calls int
	var mu sync.Mutex
	loader := LoaderFunc(func(context.Context, string) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return "x", nil
	})
	s := NewSource(loader, nil)
	defer s.Close()
	ctx := waitCtx(t)

	g1 := s.SetLocator(ctx, "/x.svg")
	require.NoError(t, s.Wait(ctx, g1))
	g2 := s.SetLocator(ctx, "/x.svg")

	assert.Equal(t, g1, g2)
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}

func TestSameLocatorRefetchesAfterFailure(t *testing.T) {
	var calls int
	var mu sync.Mutex
	loader := LoaderFunc(func(context.Context, string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return "", errors.New("connection reset")
		}
		return "<svg/>", nil
	})
	s := NewSource(loader, nil)
	defer s.Close()
	ctx := waitCtx(t)

	g1 := s.SetLocator(ctx, "/x.svg")
	require.NoError(t, s.Wait(ctx, g1))
	assert.True(t, s.Fragment().IsEmpty())

	g2 := s.SetLocator(ctx, "/x.svg")
	assert.Greater(t, g2, g1)
	require.NoError(t, s.Wait(ctx, g2))
	assert.Equal(t, "<svg/>", s.Fragment().Content)

	g3 := s.SetLocator(ctx, "/x.svg")
	assert.Equal(t, g2, g3)
	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()
}

func TestFetchFailureYieldsEmptyContent(t *testing.T) {
	loader := LoaderFunc(func(_ context.Context, locator string) (string, error) {
		if locator == "/ok.svg" {
			return "<svg/>", nil
		}
		return "partial", errors.New("connection reset")
	})
	s := NewSource(loader, nil)
	defer s.Close()
	ctx := waitCtx(t)

	frag, err := s.Load(ctx, "/ok.svg")
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", frag.Content)

	frag, err = s.Load(ctx, "/broken.svg")
	require.NoError(t, err)
	assert.True(t, frag.IsEmpty())
	assert.Equal(t, "/broken.svg", frag.Locator)
}

func TestPriorFetchCancelled(t *testing.T) {
	cancelled := make(chan struct{})
	loader := LoaderFunc(func(ctx context.Context, locator string) (string, error) {
		if locator == "/slow.svg" {
			<-ctx.Done()
			close(cancelled)
			return "", ctx.Err()
		}
		return "fast", nil
	})
	s := NewSource(loader, nil)
	defer s.Close()
	ctx := waitCtx(t)

	s.SetLocator(ctx, "/slow.svg")
	gen := s.SetLocator(ctx, "/fast.svg")
	require.NoError(t, s.Wait(ctx, gen))

	select {
	case <-cancelled:
	case <-ctx.Done():
		t.Fatal("prior fetch was not cancelled")
	}
	assert.Equal(t, "fast", s.Fragment().Content)
}

func TestCloseStopsInflightMutation(t *testing.T) {
	started := make(chan struct{})
	loader := LoaderFunc(func(ctx context.Context, _ string) (string, error) {
		close(started)
		<-ctx.Done()
		return "late", nil
	})
	s := NewSource(loader, nil)

	var notified int
	s.Subscribe(func(fragment.Fragment) { notified++ })

	s.SetLocator(context.Background(), "/late.svg")
	<-started
	s.Close()

	assert.True(t, s.Fragment().IsEmpty())
	assert.Equal(t, 0, notified)
	assert.Equal(t, uint64(0), s.SetLocator(context.Background(), "/again.svg"))

	_, err := s.Load(context.Background(), "/again.svg")
	assert.Error(t, err)

	s.Close()
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	loader := LoaderFunc(func(_ context.Context, locator string) (string, error) {
		return "content of " + locator, nil
	})
	s := NewSource(loader, nil)
	defer s.Close()
	ctx := waitCtx(t)

	var mu sync.Mutex
	var seen []string
	unsubscribe := s.Subscribe(func(f fragment.Fragment) {
		mu.Lock()
		seen = append(seen, f.Locator)
		mu.Unlock()
	})

	_, err := s.Load(ctx, "/one.svg")
	require.NoError(t, err)

	unsubscribe()
	unsubscribe()

	_, err = s.Load(ctx, "/two.svg")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/one.svg"}, seen)
}

func TestCallerContextCancelsFetch(t *testing.T) {
	loader := LoaderFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	s := NewSource(loader, nil)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	gen := s.SetLocator(ctx, "/x.svg")
	cancel()

	require.NoError(t, s.Wait(waitCtx(t), gen))
	assert.True(t, s.Fragment().IsEmpty())
}
