package video

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Component renders the widget for its current snapshot. A widget hidden by
// auto-close renders nothing.
func (p *Player) Component() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		snap := p.Snapshot()
		if !snap.Visible {
			return nil
		}

		return writeWidget(w, p.cfg, snap)
	})
}

func writeWidget(w io.Writer, cfg Config, snap Snapshot) error {
	var b strings.Builder

	classes := []string{"video-player", "video-player--" + snap.State.String(), "video-player--" + cfg.Fit.String()}
	if snap.Rotated {
		classes = append(classes, "video-player--rotated")
	}
	fmt.Fprintf(&b, `<div class="%s" data-state="%s" data-orientation="%s">`,
		strings.Join(classes, " "), snap.State, cfg.Orientation)

	b.WriteString(`<video class="video-player__media"`)
	attr(&b, "src", string(templ.URL(cfg.Src)))
	if cfg.Poster != "" {
		attr(&b, "poster", string(templ.URL(cfg.Poster)))
	}
	b.WriteString(` preload="auto"`)
	if cfg.Muted {
		b.WriteString(` muted`)
	}
	if cfg.Loop {
		b.WriteString(` loop`)
	}
	if cfg.Autoplay {
		b.WriteString(` autoplay`)
	}
	b.WriteString(` playsinline webkit-playsinline="true" x5-playsinline x-webkit-airplay="allow"`)
	b.WriteString(` controlslist="nodownload nofullscreen noremoteplayback" disablepictureinpicture`)
	b.WriteString(`></video>`)

	if cfg.CanvasMirroring {
		b.WriteString(`<canvas class="video-player__mirror" aria-hidden="true"></canvas>`)
	}

	b.WriteString(`<div class="video-player__controls">`)
	if cfg.ShowPlayButton {
		label, icon := "Play", "▶"
		if snap.State == StatePlaying {
			label, icon = "Pause", "⏸"
		}
		fmt.Fprintf(&b, `<button type="button" class="video-player__play" aria-label="%s">%s</button>`, label, icon)
	}

	fmt.Fprintf(&b, `<div class="video-player__progress" role="progressbar" aria-valuemin="0" aria-valuemax="100" aria-valuenow="%.0f">`,
		snap.Progress*100)
	fmt.Fprintf(&b, `<div class="video-player__progress-fill" style="width: %.1f%%"></div></div>`, snap.Progress*100)

	fmt.Fprintf(&b, `<div class="video-player__time">%s / %s</div>`,
		FormatTime(snap.Elapsed.Seconds()), FormatTime(snap.Duration.Seconds()))

	muteLabel, muteIcon := "Mute", "🔊"
	if snap.Volume == 0 {
		muteLabel, muteIcon = "Unmute", "🔇"
	}
	fmt.Fprintf(&b, `<div class="video-player__volume"><button type="button" class="video-player__mute" aria-label="%s">%s</button>`,
		muteLabel, muteIcon)
	fmt.Fprintf(&b, `<input type="range" class="video-player__volume-slider" min="0" max="1" step="0.1" value="%.1f" aria-label="Volume"></div>`,
		snap.Volume)

	if cfg.ShowSkipButton {
		b.WriteString(`<button type="button" class="video-player__skip">Skip</button>`)
	}
	b.WriteString(`</div></div>`)

	_, err := io.WriteString(w, b.String())

	return err
}

func attr(b *strings.Builder, name, value string) {
	b.WriteString(` ` + name + `="` + templ.EscapeString(value) + `"`)
}
