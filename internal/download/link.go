package download

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Link is the download-only fallback for a non-renderable asset.
type Link struct {
	// FileURL is exposed verbatim as the download target.
	FileURL string
	// FileName is the suggested save name. Empty means the browser picks.
	FileName string
}

const advisory = `Opening untrusted PDFs with an &lt;iframe&gt; or &lt;embed&gt; element ` +
	`lets scripts embedded in the document run. Download the file and open it in a ` +
	`local reader, or preview it with PDF.js with scripting disabled.`

// Component renders the download anchor and the advisory text. It never
// emits an embedding element.
func (l Link) Component() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		href := templ.EscapeString(string(templ.URL(l.FileURL)))

		download := ` download`
		if l.FileName != "" {
			download = ` download="` + templ.EscapeString(l.FileName) + `"`
		}

		label := "Download PDF"
		if l.FileName != "" {
			label = "Download " + templ.EscapeString(l.FileName)
		}

		_, err := io.WriteString(w, `<div class="download-preview">`+
			`<p class="download-preview__action">`+
			`<a class="download-preview__link" href="`+href+`"`+download+` target="_blank" rel="noopener noreferrer">`+
			label+`</a>`+
			`<span class="download-preview__hint">Recommended: open it in a local PDF reader.</span>`+
			`</p>`+
			`<p class="download-preview__advisory">`+advisory+`</p>`+
			`</div>`)

		return err
	})
}
