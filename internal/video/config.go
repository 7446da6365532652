// Package video models the custom video widget: a small state machine over
// a media element, with elapsed time, progress and volume derived from the
// element on every read.
package video

import (
	"fmt"
	"strings"

	"github.com/conneroisu/safepreview/internal/errors"
	"github.com/conneroisu/safepreview/internal/validation"
)

// Fit controls how the video fills its box.
type Fit int

const (
	// FitContain letterboxes the video inside the box.
	FitContain Fit = iota
	// FitCover fills the box, cropping as needed.
	FitCover
)

// String returns the CSS object-fit keyword.
func (f Fit) String() string {
	if f == FitCover {
		return "cover"
	}

	return "contain"
}

// ParseFit accepts "contain" and "cover" (or "fill").
func ParseFit(s string) (Fit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "contain":
		return FitContain, nil
	case "cover", "fill":
		return FitCover, nil
	default:
		return FitContain, fmt.Errorf("unknown fit %q", s)
	}
}

// Orientation is a screen or layout orientation.
type Orientation int

const (
	OrientationAny Orientation = iota
	OrientationPortrait
	OrientationLandscape
)

// String returns the orientation name.
func (o Orientation) String() string {
	switch o {
	case OrientationPortrait:
		return "portrait"
	case OrientationLandscape:
		return "landscape"
	default:
		return "any"
	}
}

// ParseOrientation accepts "any", "portrait" and "landscape".
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "auto":
		return OrientationAny, nil
	case "portrait":
		return OrientationPortrait, nil
	case "landscape":
		return OrientationLandscape, nil
	default:
		return OrientationAny, fmt.Errorf("unknown orientation %q", s)
	}
}

// Config configures a Player. The zero value of every option is its
// documented default except ShowPlayButton, which DefaultConfig turns on.
type Config struct {
	Src    string
	Poster string

	Autoplay bool
	Muted    bool
	Loop     bool

	ShowPlayButton bool
	ShowSkipButton bool
	// AutoCloseOnEnd hides the widget once playback ends or is skipped.
	AutoCloseOnEnd bool
	// CanvasMirroring redraws frames onto a canvas while playing.
	CanvasMirroring bool

	Fit         Fit
	Orientation Orientation
	// AllowRotate rotates the layout when the detected orientation
	// disagrees with Orientation.
	AllowRotate bool

	OnPlay  func()
	OnPause func()
	OnEnd   func()
}

// DefaultConfig returns the defaults for src.
func DefaultConfig(src string) Config {
	return Config{
		Src:            src,
		ShowPlayButton: true,
		Fit:            FitContain,
		Orientation:    OrientationAny,
	}
}

// Validate checks the locators.
func (c Config) Validate() error {
	if err := validation.ValidateLocator(c.Src); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidLocator, "invalid video source").WithCause(err)
	}
	if c.Poster != "" {
		if err := validation.ValidateLocator(c.Poster); err != nil {
			return errors.NewValidationError(errors.ErrCodeInvalidLocator, "invalid poster").WithCause(err)
		}
	}

	return nil
}

func (c Config) onPlay() {
	if c.OnPlay != nil {
		c.OnPlay()
	}
}

func (c Config) onPause() {
	if c.OnPause != nil {
		c.OnPause()
	}
}

func (c Config) onEnd() {
	if c.OnEnd != nil {
		c.OnEnd()
	}
}
