package fragment

import (
	"strings"

	"github.com/conneroisu/safepreview/internal/errors"
)

// Mode selects the render path for a fragment. The zero value is
// ModeSanitized.
type Mode int

const (
	// ModeSanitized passes the fragment through the sanitizer before
	// insertion.
	ModeSanitized Mode = iota
	// ModeRaw inserts the fragment unescaped.
	ModeRaw
)

// String returns the canonical name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeRaw:
		return "raw"
	case ModeSanitized:
		return "sanitized"
	default:
		return "unknown"
	}
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == ModeRaw {
		return ModeSanitized
	}

	return ModeRaw
}

// ParseMode accepts "raw"/"direct" and "sanitized"/"safe". The empty string
// yields the default, ModeSanitized.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sanitized", "safe":
		return ModeSanitized, nil
	case "raw", "direct":
		return ModeRaw, nil
	default:
		return ModeSanitized, errors.NewValidationError(errors.ErrCodeInvalidMode,
			"unknown render mode: "+s).
			WithContext("allowed", []string{"raw", "direct", "sanitized", "safe"})
	}
}

// Fragment is a piece of markup and, when it was fetched, the locator it
// came from.
type Fragment struct {
	Content string
	Locator string
}

// Inline wraps content that was supplied directly rather than fetched.
func Inline(content string) Fragment {
	return Fragment{Content: content}
}

// IsEmpty reports whether there is nothing to render.
func (f Fragment) IsEmpty() bool {
	return f.Content == ""
}
