package server

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/safepreview/internal/articles"
	"github.com/conneroisu/safepreview/internal/fragment"
	"github.com/conneroisu/safepreview/internal/inspect"
	"github.com/conneroisu/safepreview/internal/sanitizer"
)

const siteName = "safepreview"

// page is the shared layout. body renders inside <main>.
type page struct {
	Title      string
	LiveReload bool
	Body       templ.Component
}

func (p page) Component() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := siteName
		if p.Title != "" {
			title = p.Title + " · " + siteName
		}

		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1">`+
			`<title>`+templ.EscapeString(title)+`</title>`+
			`<link rel="stylesheet" href="/static/site.css"></head><body>`+
			`<header><nav><a href="/">Articles</a>`+
			`<a href="/demos/svg-preview">SVG preview</a>`+
			`<a href="/demos/svg-compare">Compare</a>`+
			`<a href="/demos/pdf-preview">PDF</a>`+
			`<a href="/demos/video">Video</a></nav></header><main>`); err != nil {
			return err
		}

		if p.Body != nil {
			if err := p.Body.Render(ctx, w); err != nil {
				return err
			}
		}

		tail := `</main>`
		if p.LiveReload {
			tail += `<script src="/static/livereload.js" defer></script>`
		}
		tail += `</body></html>`
		_, err := io.WriteString(w, tail)

		return err
	})
}

// html writes a fixed string.
func html(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

func seq(parts ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, part := range parts {
			if part == nil {
				continue
			}
			if err := part.Render(ctx, w); err != nil {
				return err
			}
		}

		return nil
	})
}

func esc(s string) string {
	return templ.EscapeString(s)
}

func href(u string) string {
	return templ.EscapeString(string(templ.URL(u)))
}

func indexView(list []*articles.Article, tags map[string]int) templ.Component {
	var b strings.Builder
	b.WriteString(`<h1>Articles</h1>`)

	if len(list) == 0 {
		b.WriteString(`<p>No articles yet.</p>`)
	} else {
		b.WriteString(`<ul class="articles">`)
		for _, a := range list {
			fmt.Fprintf(&b, `<li><a href="%s">%s</a>`, href("/articles/"+a.Slug), esc(a.Title))
			if !a.Date.IsZero() {
				fmt.Fprintf(&b, ` <time datetime="%s">%s</time>`,
					a.Date.Format("2006-01-02"), a.Date.Format("Jan 2, 2006"))
			}
			if a.Summary != "" {
				fmt.Fprintf(&b, `<p>%s</p>`, esc(a.Summary))
			}
			b.WriteString(`</li>`)
		}
		b.WriteString(`</ul>`)
	}

	if len(tags) > 0 {
		b.WriteString(`<p class="tags">`)
		for _, tag := range sortedKeys(tags) {
			fmt.Fprintf(&b, `<span class="tag">%s (%d)</span> `, esc(tag), tags[tag])
		}
		b.WriteString(`</p>`)
	}

	return html(b.String())
}

// articleView inserts the stored body through the renderer so it passes the
// same sanitization point as every other fragment.
func articleView(a *articles.Article, r *fragment.Renderer) templ.Component {
	var head strings.Builder
	fmt.Fprintf(&head, `<article><h1>%s</h1>`, esc(a.Title))
	if !a.Date.IsZero() {
		fmt.Fprintf(&head, `<p><time datetime="%s">%s</time></p>`,
			a.Date.Format("2006-01-02"), a.Date.Format("January 2, 2006"))
	}

	body := r.Component(fragment.Fragment{Content: a.HTML, Locator: "/articles/" + a.Slug},
		fragment.ModeSanitized, sanitizer.ProfileHTML)

	return seq(html(head.String()), body, html(`</article>`))
}

type previewModel struct {
	Locator  string
	Inline   bool
	Mode     fragment.Mode
	Profile  sanitizer.Profile
	Fragment templ.Component
	Report   inspect.Report
	Failed   bool

	// DownloadOnly means Fragment is the download link, not the content.
	DownloadOnly bool
}

func svgPreviewView(m previewModel) templ.Component {
	var head strings.Builder
	head.WriteString(`<h1>SVG preview</h1>`)
	if m.Inline {
		head.WriteString(`<p>Source: pasted markup</p>`)
	} else {
		fmt.Fprintf(&head, `<p>Source: <code>%s</code></p>`, esc(m.Locator))
	}
	fmt.Fprintf(&head, `<p>Mode: <strong>%s</strong>, profile: <code>%s</code></p>`,
		esc(m.Mode.String()), esc(string(m.Profile)))
	if m.Failed {
		head.WriteString(`<p class="findings">Nothing to show for this source.</p>`)
	}
	if m.DownloadOnly {
		head.WriteString(`<p>This format cannot be shown inline. It is offered as a download.</p>`)
	}
	head.WriteString(`<div class="fragment">`)

	var tail strings.Builder
	tail.WriteString(`</div>`)
	if !m.DownloadOnly {
		writeFindings(&tail, m.Report)
	}

	tail.WriteString(`<h2>Preview your own</h2>`)
	tail.WriteString(`<form method="post" action="/demos/svg-preview">`)
	tail.WriteString(`<textarea name="content" rows="8" cols="60"></textarea>`)
	tail.WriteString(`<p><label><input type="checkbox" name="mode" value="raw"> Insert raw</label></p>`)
	tail.WriteString(`<button type="submit">Preview</button></form>`)

	return seq(html(head.String()), m.Fragment, html(tail.String()))
}

var compareFixtures = []struct {
	Name    string
	Locator string
}{
	{"safe", "/img/safe.svg"},
	{"xss", "/img/xss.svg"},
}

func fixtureLocator(name string) (string, bool) {
	for _, f := range compareFixtures {
		if f.Name == name {
			return f.Locator, true
		}
	}

	return "", false
}

func svgCompareView(fixture string, m previewModel) templ.Component {
	var head strings.Builder
	head.WriteString(`<h1>Raw or sanitized</h1><p class="compare-controls">`)
	for _, f := range compareFixtures {
		for _, mode := range []fragment.Mode{fragment.ModeSanitized, fragment.ModeRaw} {
			target := fmt.Sprintf("/demos/svg-compare?type=%s&mode=%s", f.Name, mode)
			current := f.Name == fixture && mode == m.Mode
			fmt.Fprintf(&head, `<a href="%s" aria-current="%t">%s / %s</a> `,
				href(target), current, esc(f.Name), esc(mode.String()))
		}
	}
	head.WriteString(`</p>`)
	if m.Mode == fragment.ModeRaw {
		head.WriteString(`<p><strong>Raw mode</strong> inserts the file exactly as fetched.</p>`)
	}
	fmt.Fprintf(&head, `<div class="fragment" data-mode="%s">`, esc(m.Mode.String()))

	var tail strings.Builder
	tail.WriteString(`</div>`)
	writeFindings(&tail, m.Report)

	return seq(html(head.String()), m.Fragment, html(tail.String()))
}

// writeFindings lists what the source contains before sanitization.
func writeFindings(b *strings.Builder, report inspect.Report) {
	b.WriteString(`<section class="findings"><h2>Source findings</h2>`)
	if report.SVG != nil {
		fmt.Fprintf(b, `<p>SVG root: %d elements`, report.SVG.Elements)
		if report.SVG.Title != "" {
			fmt.Fprintf(b, `, title &#34;%s&#34;`, esc(report.SVG.Title))
		}
		if report.SVG.ViewBox != "" {
			fmt.Fprintf(b, `, viewBox %s`, esc(report.SVG.ViewBox))
		}
		b.WriteString(`</p>`)
	}
	if report.Clean() {
		b.WriteString(`<p>No executable constructs found.</p></section>`)
		return
	}

	b.WriteString(`<ul>`)
	for _, f := range report.Findings {
		fmt.Fprintf(b, `<li data-kind="%s"><strong>%s</strong> %s`, esc(string(f.Kind)), esc(string(f.Severity)), esc(f.Element))
		if f.Attribute != "" {
			fmt.Fprintf(b, ` <code>%s</code>`, esc(f.Attribute))
		}
		if f.Value != "" {
			fmt.Fprintf(b, ` = <code>%s</code>`, esc(f.Value))
		}
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul></section>`)
}

func pdfPreviewView(link templ.Component) templ.Component {
	return seq(
		html(`<h1>PDF preview</h1>`),
		link,
	)
}

func videoView(player templ.Component, state string) templ.Component {
	return seq(
		html(`<h1>Video</h1><p>Widget state: <code>`+esc(state)+`</code></p>`),
		player,
	)
}

func messageView(title, message string) templ.Component {
	return html(`<h1>` + esc(title) + `</h1><p>` + esc(message) + `</p>`)
}
