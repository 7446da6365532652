// Package articles loads the site's markdown articles. Bodies are rendered
// with goldmark, raw HTML included, and then passed through the html-profile
// sanitizer before they are stored.
package articles

import (
	"bytes"
	"path"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/safepreview/internal/errors"
	"github.com/conneroisu/safepreview/internal/sanitizer"
)

const dateLayout = "2006-01-02"

// FrontMatter is the YAML header of an article.
type FrontMatter struct {
	Title   string   `yaml:"title"`
	Slug    string   `yaml:"slug"`
	Date    string   `yaml:"date"`
	Tags    []string `yaml:"tags"`
	Summary string   `yaml:"summary"`
	Draft   bool     `yaml:"draft"`
}

// Article is a parsed, sanitized article.
type Article struct {
	Slug    string    `json:"slug" yaml:"slug"`
	Title   string    `json:"title" yaml:"title"`
	Date    time.Time `json:"date" yaml:"date"`
	Tags    []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	Summary string    `json:"summary,omitempty" yaml:"summary,omitempty"`
	Draft   bool      `json:"draft,omitempty" yaml:"draft,omitempty"`
	// HTML is the sanitized body.
	HTML string `json:"-" yaml:"-"`
	// Path is the source file name within the store's filesystem.
	Path string `json:"path" yaml:"path"`
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	// Raw HTML passes through goldmark and is cleaned by the sanitizer.
	goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
)

var titleCaser = cases.Title(language.English)

// Parse builds an Article from a markdown file with optional front matter.
func Parse(name string, data []byte, s sanitizer.Sanitizer) (*Article, error) {
	fm, body, err := splitFrontMatter(data)
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeFrontMatter, "invalid front matter in "+name).WithCause(err)
	}

	var buf bytes.Buffer
	if err := markdown.Convert(body, &buf); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "rendering markdown "+name, err)
	}

	clean, err := s.Sanitize(buf.String(), sanitizer.ProfileHTML)
	if err != nil {
		return nil, err
	}

	a := &Article{
		Title:   strings.TrimSpace(fm.Title),
		Tags:    fm.Tags,
		Summary: strings.TrimSpace(fm.Summary),
		Draft:   fm.Draft,
		HTML:    clean,
		Path:    name,
	}

	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	if a.Title == "" {
		a.Title = titleCaser.String(strings.NewReplacer("-", " ", "_", " ").Replace(base))
	}

	switch {
	case fm.Slug != "":
		a.Slug = slug.Make(fm.Slug)
	case fm.Title != "":
		a.Slug = slug.Make(fm.Title)
	default:
		a.Slug = slug.Make(base)
	}

	if fm.Date != "" {
		d, err := time.Parse(dateLayout, fm.Date)
		if err != nil {
			return nil, errors.NewValidationError(errors.ErrCodeFrontMatter,
				"date must be YYYY-MM-DD in "+name).WithCause(err)
		}
		a.Date = d
	}

	return a, nil
}

func splitFrontMatter(data []byte) (FrontMatter, []byte, error) {
	var fm FrontMatter

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	normalized := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return fm, data, nil
	}

	rest := normalized[len("---\n"):]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return fm, nil, errors.NewValidationError(errors.ErrCodeFrontMatter, "unterminated front matter")
	}

	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return fm, nil, err
	}

	body := rest[end+len("\n---"):]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}

	return fm, body, nil
}
