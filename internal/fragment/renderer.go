// Package fragment decides how a markup fragment reaches the page.
//
// Every fragment goes through Renderer.Markup. In ModeSanitized the
// sanitizer is always called before insertion; in ModeRaw the fragment is
// inserted byte for byte and a security event is logged. Failures never
// propagate: the renderer logs them and renders nothing.
package fragment

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/google/safehtml"

	"github.com/conneroisu/safepreview/internal/errors"
	"github.com/conneroisu/safepreview/internal/fragment/internal/markup"
	"github.com/conneroisu/safepreview/internal/logging"
	"github.com/conneroisu/safepreview/internal/sanitizer"
)

// Renderer owns the raw-versus-sanitized decision.
type Renderer struct {
	sanitizer sanitizer.Sanitizer
	logger    logging.Logger
	minifySVG bool
	allowRaw  bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the diagnostics logger.
func WithLogger(logger logging.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger.WithComponent("fragment_renderer")
	}
}

// WithSVGMinify compacts svg-profile output after sanitization.
func WithSVGMinify(enabled bool) Option {
	return func(r *Renderer) {
		r.minifySVG = enabled
	}
}

// WithAllowRaw controls whether ModeRaw is honoured. When disabled, raw
// requests are rendered sanitized.
func WithAllowRaw(allowed bool) Option {
	return func(r *Renderer) {
		r.allowRaw = allowed
	}
}

// NewRenderer creates a renderer around s.
func NewRenderer(s sanitizer.Sanitizer, opts ...Option) *Renderer {
	r := &Renderer{
		sanitizer: s,
		logger:    logging.NewNopLogger(),
		allowRaw:  true,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Markup resolves f to trusted markup. ok is false when nothing should be
// inserted: the fragment is empty, sanitization failed, or sanitization
// removed everything.
func (r *Renderer) Markup(ctx context.Context, f Fragment, mode Mode, profile sanitizer.Profile) (safehtml.HTML, bool) {
	if f.IsEmpty() {
		return safehtml.HTML{}, false
	}

	if mode == ModeRaw {
		if r.allowRaw {
			logging.LogSecurityEvent(ctx, r.logger, "raw_render", map[string]interface{}{
				"locator": f.Locator,
				"bytes":   len(f.Content),
			})

			return markup.FromUntrusted(f.Content), true
		}
		r.logger.Info(ctx, "Raw render disabled, sanitizing instead", "locator", f.Locator)
	}

	out, err := r.sanitize(f.Content, profile)
	if err != nil {
		r.logger.Warn(ctx, err, "Sanitization failed, rendering nothing",
			"profile", string(profile), "locator", f.Locator)

		return safehtml.HTML{}, false
	}

	if r.minifySVG && profile == sanitizer.ProfileSVG {
		if compact, err := sanitizer.MinifySVG(out); err == nil {
			out = compact
		} else {
			r.logger.Debug(ctx, "SVG minification skipped", "error", err.Error())
		}
	}

	if out == "" {
		return safehtml.HTML{}, false
	}

	return markup.FromSanitized(out), true
}

// sanitize guards against sanitizers that panic instead of returning an
// error.
func (r *Renderer) sanitize(content string, profile sanitizer.Profile) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = ""
			err = errors.NewSanitizeError(errors.ErrCodeSanitizerPanic,
				"sanitizer panicked", fmt.Errorf("%v", rec))
		}
	}()

	return r.sanitizer.Sanitize(content, profile)
}

// Component renders f lazily: the mode decision and the sanitizer call
// happen when the component is rendered.
func (r *Renderer) Component(f Fragment, mode Mode, profile sanitizer.Profile) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h, ok := r.Markup(ctx, f, mode, profile)
		if !ok {
			return nil
		}

		return markup.Insert(h).Render(ctx, w)
	})
}

// String renders f to a string, or "" when nothing would be inserted.
func (r *Renderer) String(ctx context.Context, f Fragment, mode Mode, profile sanitizer.Profile) string {
	h, ok := r.Markup(ctx, f, mode, profile)
	if !ok {
		return ""
	}

	return h.String()
}
