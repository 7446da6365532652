// Package download decides which formats may be rendered inline and renders
// the download-only fallback for the rest.
package download

import (
	"bytes"
	"net/url"
	"path"
	"strings"

	"github.com/h2non/filetype"
)

// Format is the detected content class of an asset.
type Format int

const (
	FormatUnknown Format = iota
	FormatSVG
	FormatHTML
	FormatPDF
)

// String returns the lower-case format name.
func (f Format) String() string {
	switch f {
	case FormatSVG:
		return "svg"
	case FormatHTML:
		return "html"
	case FormatPDF:
		return "pdf"
	default:
		return "unknown"
	}
}

// Disposition says how an asset may be presented.
type Disposition int

const (
	// DownloadOnly assets are offered as a link and never embedded.
	DownloadOnly Disposition = iota
	// Render assets may go through the fragment renderer.
	Render
)

// String returns the disposition name.
func (d Disposition) String() string {
	if d == Render {
		return "render"
	}

	return "download-only"
}

// DispositionFor is the fixed policy table. Only markup the sanitizer
// understands is renderable; everything else is download-only.
func DispositionFor(f Format) Disposition {
	switch f {
	case FormatSVG, FormatHTML:
		return Render
	default:
		return DownloadOnly
	}
}

const sniffLen = 512

// Classify detects the format of an asset. Magic bytes in head win; the
// locator's extension is the fallback.
func Classify(locator string, head []byte) Format {
	if len(head) > 0 {
		if f, ok := sniff(head); ok {
			return f
		}
	}

	return byExtension(locator)
}

// sniff reports ok when head alone decides the format.
func sniff(head []byte) (Format, bool) {
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}

	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		if kind.Extension == "pdf" {
			return FormatPDF, true
		}

		return FormatUnknown, true
	}

	text := bytes.TrimPrefix(head, []byte("\xef\xbb\xbf"))
	text = bytes.ToLower(bytes.TrimSpace(text))
	switch {
	case bytes.Contains(text, []byte("<svg")):
		return FormatSVG, true
	case bytes.HasPrefix(text, []byte("<!doctype html")), bytes.HasPrefix(text, []byte("<html")):
		return FormatHTML, true
	default:
		return FormatUnknown, false
	}
}

func byExtension(locator string) Format {
	p := locator
	if u, err := url.Parse(locator); err == nil {
		p = u.Path
	}

	switch strings.ToLower(path.Ext(p)) {
	case ".svg":
		return FormatSVG
	case ".html", ".htm":
		return FormatHTML
	case ".pdf":
		return FormatPDF
	default:
		return FormatUnknown
	}
}

// FileName returns the last path element of locator, or "" for a bare root.
func FileName(locator string) string {
	p := locator
	if u, err := url.Parse(locator); err == nil {
		p = u.Path
	}
	name := path.Base(p)
	if name == "/" || name == "." {
		return ""
	}

	return name
}
