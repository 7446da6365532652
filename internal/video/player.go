package video

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/conneroisu/safepreview/internal/errors"
	"github.com/conneroisu/safepreview/internal/logging"
)

// State is the widget's playback state.
type State int

const (
	// StateIdle shows the poster.
	StateIdle State = iota
	StatePlaying
	StatePaused
	// StateEnded is transient: the player resolves it to StatePlaying
	// (loop) or StateIdle immediately.
	StateEnded
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// DefaultFrameInterval is roughly 30 frames per second.
const DefaultFrameInterval = 33 * time.Millisecond

// Snapshot is a consistent view of the widget for rendering. Every field
// except State, Visible and Rotated is read from the media element.
type Snapshot struct {
	State    State
	Elapsed  time.Duration
	Duration time.Duration
	Progress float64
	Volume   float64
	Muted    bool
	Visible  bool
	Rotated  bool
}

// Option configures a Player.
type Option func(*Player)

// WithOrientationSource sets the device orientation source.
func WithOrientationSource(src OrientationSource) Option {
	return func(p *Player) { p.orientSrc = src }
}

// WithFrameDrawer sets the canvas mirroring target.
func WithFrameDrawer(d FrameDrawer) Option {
	return func(p *Player) { p.drawer = d }
}

// WithFrameInterval sets the mirroring frame interval. Values of zero or
// less keep DefaultFrameInterval.
func WithFrameInterval(d time.Duration) Option {
	return func(p *Player) {
		if d > 0 {
			p.frameInterval = d
		}
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger logging.Logger) Option {
	return func(p *Player) { p.logger = logger.WithComponent("video_player") }
}

// Player drives a Media according to a Config.
type Player struct {
	cfg           Config
	media         Media
	orientSrc     OrientationSource
	drawer        FrameDrawer
	frameInterval time.Duration
	logger        logging.Logger

	root   context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	visible     bool
	orientation Orientation
	mounted     bool
	closed      bool
	unsubs      []func()
	observers   map[int]func(Snapshot)
	nextObs     int
	frameStop   context.CancelFunc
	frameDone   chan struct{}
}

// NewPlayer validates cfg and creates an unmounted player.
func NewPlayer(cfg Config, media Media, opts ...Option) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if media == nil {
		return nil, errors.NewValidationError(errors.ErrCodeInternalError, "media element is required")
	}

	root, cancel := context.WithCancel(context.Background())
	p := &Player{
		cfg:           cfg,
		media:         media,
		orientSrc:     FixedOrientation(OrientationAny),
		frameInterval: DefaultFrameInterval,
		logger:        logging.NewNopLogger(),
		root:          root,
		cancel:        cancel,
		visible:       true,
		observers:     make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.orientation = p.orientSrc.Orientation()

	return p, nil
}

// Mount subscribes to the media element and the orientation source, applies
// the muted option and, when configured, attempts autoplay. A rejected
// autoplay leaves the player idle.
func (p *Player) Mount(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.NewMediaError(errors.ErrCodeSourceClosed, "player is closed", nil)
	}
	if p.mounted {
		p.mu.Unlock()
		return nil
	}
	p.mounted = true
	p.mu.Unlock()

	unsubs := []func(){
		p.media.Subscribe(EventLoadedMetadata, p.notify),
		p.media.Subscribe(EventTimeUpdate, p.notify),
		p.media.Subscribe(EventVolumeChange, p.notify),
		p.media.Subscribe(EventEnded, p.handleEnded),
		p.orientSrc.Subscribe(p.handleOrientation),
	}

	p.mu.Lock()
	p.unsubs = append(p.unsubs, unsubs...)
	p.mu.Unlock()

	if p.cfg.Muted {
		p.media.SetMuted(true)
		p.media.SetVolume(0)
	}

	if p.cfg.Autoplay {
		p.play(ctx)
	}

	return nil
}

// TogglePlay pauses when playing and plays otherwise.
func (p *Player) TogglePlay(ctx context.Context) {
	if p.State() == StatePlaying {
		p.pause()
		return
	}
	p.play(ctx)
}

func (p *Player) play(ctx context.Context) {
	if p.isClosed() {
		return
	}

	if err := p.media.Play(ctx); err != nil {
		p.logger.Warn(ctx, errors.NewMediaError(errors.ErrCodePlaybackRejected, "playback rejected", err),
			"Playback rejected, keeping current state", "state", p.State().String())
		return
	}

	if !p.setState(StatePlaying) {
		return
	}
	p.startFrames()
	p.cfg.onPlay()
	p.notify()
}

func (p *Player) pause() {
	if p.isClosed() {
		return
	}

	p.media.Pause()
	p.stopFrames()
	if !p.setState(StatePaused) {
		return
	}
	p.cfg.onPause()
	p.notify()
}

func (p *Player) handleEnded() {
	if !p.setState(StateEnded) {
		return
	}
	p.stopFrames()

	if p.cfg.Loop {
		p.media.Seek(0)
		err := p.media.Play(p.root)
		if err == nil {
			if p.setState(StatePlaying) {
				p.startFrames()
				p.notify()
			}
			return
		}
		p.logger.Warn(p.root, err, "Loop restart rejected")
	}

	p.finish()
}

// finish returns to the poster and applies auto-close.
func (p *Player) finish() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.state = StateIdle
	if p.cfg.AutoCloseOnEnd {
		p.visible = false
	}
	p.mu.Unlock()

	p.cfg.onEnd()
	p.notify()
}

// Skip stops playback as if it had ended, without looping.
func (p *Player) Skip() {
	if p.isClosed() {
		return
	}
	p.media.Pause()
	p.stopFrames()
	p.finish()
}

// SeekFraction seeks to fraction of the duration, clamped to [0, 1]. It is
// ignored until a finite duration is known.
func (p *Player) SeekFraction(fraction float64) {
	d := p.media.Duration()
	if !finiteDuration(d) {
		return
	}
	p.media.Seek(clamp01(fraction) * d)
}

// SetVolume sets the volume; zero mutes.
func (p *Player) SetVolume(v float64) {
	v = clamp01(v)
	p.media.SetVolume(v)
	p.media.SetMuted(v == 0)
}

// ToggleMute mutes an audible player, and restores an inaudible one to
// full volume.
func (p *Player) ToggleMute() {
	if p.Volume() > 0 {
		p.media.SetVolume(0)
		p.media.SetMuted(true)
		return
	}
	p.media.SetVolume(1)
	p.media.SetMuted(false)
}

// Elapsed is the media element's current time.
func (p *Player) Elapsed() time.Duration {
	return seconds(p.media.CurrentTime())
}

// Progress is elapsed over duration in [0, 1], or 0 without metadata.
func (p *Player) Progress() float64 {
	d := p.media.Duration()
	if !finiteDuration(d) {
		return 0
	}

	return clamp01(p.media.CurrentTime() / d)
}

// finiteDuration reports whether d is a usable media duration. Live streams
// report +Inf and unloaded media NaN.
func finiteDuration(d float64) bool {
	return !math.IsNaN(d) && !math.IsInf(d, 0) && d > 0
}

// Volume is the audible volume: 0 when muted.
func (p *Player) Volume() float64 {
	if p.media.Muted() {
		return 0
	}

	return p.media.Volume()
}

// State returns the playback state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// Visible is false once auto-close has hidden the widget.
func (p *Player) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.visible
}

// Rotated reports whether the layout should be rotated to compensate for
// the latest detected orientation.
func (p *Player) Rotated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cfg.AllowRotate &&
		p.cfg.Orientation != OrientationAny &&
		p.orientation != OrientationAny &&
		p.orientation != p.cfg.Orientation
}

// Snapshot reads the current view of the widget.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	state, visible := p.state, p.visible
	p.mu.Unlock()

	d := p.media.Duration()
	var total time.Duration
	if finiteDuration(d) {
		total = seconds(d)
	}

	return Snapshot{
		State:    state,
		Elapsed:  p.Elapsed(),
		Duration: total,
		Progress: p.Progress(),
		Volume:   p.Volume(),
		Muted:    p.media.Muted(),
		Visible:  visible,
		Rotated:  p.Rotated(),
	}
}

// Subscribe registers fn to receive a snapshot after every state or media
// change. The returned function unsubscribes.
func (p *Player) Subscribe(fn func(Snapshot)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextObs
	p.nextObs++
	p.observers[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.observers, id)
	}
}

// Close unsubscribes from the media element and orientation source, stops
// the frame loop and waits for it. Nothing is mutated afterwards.
func (p *Player) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	unsubs := p.unsubs
	p.unsubs = nil
	p.observers = make(map[int]func(Snapshot))
	p.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	p.cancel()
	p.stopFrames()
}

func (p *Player) handleOrientation(o Orientation) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.orientation = o
	p.mu.Unlock()

	p.notify()
}

func (p *Player) notify() {
	p.mu.Lock()
	if p.closed || len(p.observers) == 0 {
		p.mu.Unlock()
		return
	}
	fns := make([]func(Snapshot), 0, len(p.observers))
	for _, fn := range p.observers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	snap := p.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}

// setState reports false when the player is closed.
func (p *Player) setState(s State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	p.state = s

	return true
}

func (p *Player) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

func (p *Player) startFrames() {
	if !p.cfg.CanvasMirroring || p.drawer == nil {
		return
	}

	p.mu.Lock()
	if p.closed || p.frameStop != nil {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(p.root)
	done := make(chan struct{})
	p.frameStop = cancel
	p.frameDone = done
	p.mu.Unlock()

	go func() {
		defer close(done)

		ticker := time.NewTicker(p.frameInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.drawer.DrawFrame(ctx, p.media.CurrentTime()); err != nil {
					p.logger.Debug(ctx, "Frame draw failed", "error", err.Error())
				}
			}
		}
	}()
}

func (p *Player) stopFrames() {
	p.mu.Lock()
	stop, done := p.frameStop, p.frameDone
	p.frameStop, p.frameDone = nil, nil
	p.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-done
}

// FormatTime renders seconds as m:ss. Invalid or non-positive input is
// "0:00".
func FormatTime(secs float64) string {
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
		return "0:00"
	}
	whole := int(math.Floor(secs))

	return fmt.Sprintf("%d:%02d", whole/60, whole%60)
}

func seconds(s float64) time.Duration {
	if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
		return 0
	}

	return time.Duration(s * float64(time.Second))
}
