package video

import (
	"context"
	"math"
	"sync"

	"github.com/conneroisu/safepreview/internal/errors"
)

// Event is a media element lifecycle event.
type Event string

const (
	EventLoadedMetadata Event = "loadedmetadata"
	EventTimeUpdate     Event = "timeupdate"
	EventPlay           Event = "play"
	EventPause          Event = "pause"
	EventEnded          Event = "ended"
	EventVolumeChange   Event = "volumechange"
)

// Media is the element the player drives. Times are in seconds; Duration
// is NaN until metadata has loaded.
type Media interface {
	Play(ctx context.Context) error
	Pause()
	Seek(seconds float64)
	SetVolume(v float64)
	SetMuted(muted bool)

	CurrentTime() float64
	Duration() float64
	Volume() float64
	Muted() bool

	Subscribe(event Event, fn func()) (unsubscribe func())
}

// OrientationSource reports the device orientation.
type OrientationSource interface {
	Orientation() Orientation
	Subscribe(fn func(Orientation)) (unsubscribe func())
}

// FixedOrientation is an OrientationSource that never changes.
type FixedOrientation Orientation

// Orientation returns o.
func (o FixedOrientation) Orientation() Orientation { return Orientation(o) }

// Subscribe never calls fn.
func (o FixedOrientation) Subscribe(func(Orientation)) func() { return func() {} }

// FrameDrawer mirrors the current frame somewhere else, such as a canvas.
type FrameDrawer interface {
	DrawFrame(ctx context.Context, seconds float64) error
}

// Clip is an in-memory Media. The server uses it to render the widget at a
// given position; tests use it to drive lifecycle events.
type Clip struct {
	mu          sync.Mutex
	duration    float64
	currentTime float64
	volume      float64
	muted       bool
	paused      bool
	rejectPlay  bool
	subs        map[Event]map[int]func()
	nextID      int
}

// NewClip creates a paused clip with no metadata.
func NewClip() *Clip {
	return &Clip{
		duration: math.NaN(),
		volume:   1,
		paused:   true,
		subs:     make(map[Event]map[int]func()),
	}
}

// LoadMetadata sets the duration and fires loadedmetadata.
func (c *Clip) LoadMetadata(duration float64) {
	c.mu.Lock()
	c.duration = duration
	c.mu.Unlock()

	c.emit(EventLoadedMetadata)
}

// RejectPlay makes subsequent Play calls fail, like a blocked autoplay.
func (c *Clip) RejectPlay(reject bool) {
	c.mu.Lock()
	c.rejectPlay = reject
	c.mu.Unlock()
}

// Play starts playback from the current position, or from zero when the
// clip has ended.
func (c *Clip) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.rejectPlay {
		c.mu.Unlock()
		return errors.NewMediaError(errors.ErrCodePlaybackRejected, "play() rejected by platform policy", nil)
	}
	if !math.IsNaN(c.duration) && c.currentTime >= c.duration {
		c.currentTime = 0
	}
	c.paused = false
	c.mu.Unlock()

	c.emit(EventPlay)

	return nil
}

// Pause stops playback.
func (c *Clip) Pause() {
	c.mu.Lock()
	wasPlaying := !c.paused
	c.paused = true
	c.mu.Unlock()

	if wasPlaying {
		c.emit(EventPause)
	}
}

// Seek moves the playhead, clamped to [0, duration].
func (c *Clip) Seek(seconds float64) {
	c.mu.Lock()
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	if !math.IsNaN(c.duration) && seconds > c.duration {
		seconds = c.duration
	}
	c.currentTime = seconds
	c.mu.Unlock()

	c.emit(EventTimeUpdate)
}

// Advance plays forward by seconds, firing timeupdate and, at the end,
// ended. It does nothing while paused.
func (c *Clip) Advance(seconds float64) {
	c.mu.Lock()
	if c.paused || math.IsNaN(c.duration) {
		c.mu.Unlock()
		return
	}
	c.currentTime += seconds
	ended := c.currentTime >= c.duration
	if ended {
		c.currentTime = c.duration
		c.paused = true
	}
	c.mu.Unlock()

	c.emit(EventTimeUpdate)
	if ended {
		c.emit(EventEnded)
	}
}

// SetVolume sets the volume, clamped to [0, 1].
func (c *Clip) SetVolume(v float64) {
	c.mu.Lock()
	c.volume = clamp01(v)
	c.mu.Unlock()

	c.emit(EventVolumeChange)
}

// SetMuted sets the muted flag.
func (c *Clip) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()

	c.emit(EventVolumeChange)
}

// CurrentTime returns the playhead position.
func (c *Clip) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.currentTime
}

// Duration returns the duration or NaN.
func (c *Clip) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.duration
}

// Volume returns the volume.
func (c *Clip) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.volume
}

// Muted returns the muted flag.
func (c *Clip) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.muted
}

// Paused reports whether the clip is paused.
func (c *Clip) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.paused
}

// Subscribe registers fn for event.
func (c *Clip) Subscribe(event Event, fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subs[event] == nil {
		c.subs[event] = make(map[int]func())
	}
	id := c.nextID
	c.nextID++
	c.subs[event][id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs[event], id)
	}
}

// Listeners returns the number of subscriptions for event.
func (c *Clip) Listeners(event Event) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.subs[event])
}

func (c *Clip) emit(event Event) {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.subs[event]))
	for _, fn := range c.subs[event] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
