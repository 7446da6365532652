// Package inspect reports the executable constructs a fragment contains so
// the compare demo can show what the sanitizer is about to remove.
package inspect

import (
	"sort"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
)

// Kind classifies a finding.
type Kind string

const (
	KindScriptElement    Kind = "script_element"
	KindEventHandler     Kind = "event_handler"
	KindScriptURI        Kind = "script_uri"
	KindDataURI          Kind = "data_uri"
	KindForeignObject    Kind = "foreign_object"
	KindEmbeddingElement Kind = "embedding_element"
	KindAnimation        Kind = "animation"
	KindStyle            Kind = "style"
	KindExternalRef      Kind = "external_reference"
)

// Severity ranks findings.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Finding is one dangerous construct.
type Finding struct {
	Kind      Kind     `json:"kind" yaml:"kind"`
	Severity  Severity `json:"severity" yaml:"severity"`
	Element   string   `json:"element" yaml:"element"`
	Attribute string   `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Value     string   `json:"value,omitempty" yaml:"value,omitempty"`
}

// SVGSummary describes the root of a well-formed SVG document.
type SVGSummary struct {
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	ViewBox  string `json:"view_box,omitempty" yaml:"view_box,omitempty"`
	Width    string `json:"width,omitempty" yaml:"width,omitempty"`
	Height   string `json:"height,omitempty" yaml:"height,omitempty"`
	Elements int    `json:"elements" yaml:"elements"`
}

// Report is the result of Inspect.
type Report struct {
	Bytes    int         `json:"bytes" yaml:"bytes"`
	Findings []Finding   `json:"findings" yaml:"findings"`
	SVG      *SVGSummary `json:"svg,omitempty" yaml:"svg,omitempty"`
}

// Clean reports whether no findings were recorded.
func (r Report) Clean() bool {
	return len(r.Findings) == 0
}

// Count returns the number of findings per kind.
func (r Report) Count() map[Kind]int {
	counts := make(map[Kind]int)
	for _, f := range r.Findings {
		counts[f.Kind]++
	}

	return counts
}

// Kinds lists the distinct kinds found, sorted.
func (r Report) Kinds() []Kind {
	counts := r.Count()
	kinds := make([]Kind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	return kinds
}

var elementKinds = map[string]struct {
	kind     Kind
	severity Severity
}{
	"script":           {KindScriptElement, SeverityHigh},
	"foreignobject":    {KindForeignObject, SeverityHigh},
	"iframe":           {KindEmbeddingElement, SeverityHigh},
	"frame":            {KindEmbeddingElement, SeverityHigh},
	"embed":            {KindEmbeddingElement, SeverityHigh},
	"object":           {KindEmbeddingElement, SeverityHigh},
	"animate":          {KindAnimation, SeverityMedium},
	"set":              {KindAnimation, SeverityMedium},
	"animatetransform": {KindAnimation, SeverityMedium},
	"animatemotion":    {KindAnimation, SeverityMedium},
	"style":            {KindStyle, SeverityLow},
}

var urlAttributes = map[string]bool{
	"href":       true,
	"xlink:href": true,
	"src":        true,
	"action":     true,
	"formaction": true,
	"data":       true,
	"to":         true,
	"values":     true,
}

// Inspect tokenizes fragment and records dangerous constructs. Malformed
// markup is tolerated the same way a browser would tolerate it.
func Inspect(fragment string) Report {
	report := Report{
		Bytes:    len(fragment),
		Findings: []Finding{},
	}

	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF or a tokenizer error; either way there is nothing left.
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}

		tok := z.Token()
		report.Findings = append(report.Findings, scanToken(tok)...)
	}

	report.SVG = summarizeSVG(fragment)

	return report
}

func scanToken(tok html.Token) []Finding {
	var findings []Finding
	name := strings.ToLower(tok.Data)

	if ek, ok := elementKinds[name]; ok {
		findings = append(findings, Finding{Kind: ek.kind, Severity: ek.severity, Element: name})
	}

	for _, attr := range tok.Attr {
		key := strings.ToLower(attr.Key)
		if attr.Namespace != "" {
			key = strings.ToLower(attr.Namespace) + ":" + key
		}

		switch {
		case strings.HasPrefix(key, "on"):
			findings = append(findings, Finding{
				Kind: KindEventHandler, Severity: SeverityHigh,
				Element: name, Attribute: key, Value: attr.Val,
			})
		case key == "style":
			findings = append(findings, Finding{
				Kind: KindStyle, Severity: SeverityLow,
				Element: name, Attribute: key,
			})
		case urlAttributes[key]:
			if f, ok := classifyURL(name, key, attr.Val); ok {
				findings = append(findings, f)
			}
		}
	}

	return findings
}

func classifyURL(element, attr, value string) (Finding, bool) {
	normalized := normalizeURL(value)
	f := Finding{Element: element, Attribute: attr, Value: value}

	switch {
	case strings.HasPrefix(normalized, "javascript:"), strings.HasPrefix(normalized, "vbscript:"):
		f.Kind, f.Severity = KindScriptURI, SeverityHigh
	case strings.HasPrefix(normalized, "data:"):
		f.Kind, f.Severity = KindDataURI, SeverityMedium
	case strings.HasPrefix(normalized, "http:"), strings.HasPrefix(normalized, "https:"),
		strings.HasPrefix(normalized, "//"):
		f.Kind, f.Severity = KindExternalRef, SeverityLow
	default:
		return Finding{}, false
	}

	return f, true
}

// normalizeURL drops the whitespace and control characters browsers ignore
// inside a scheme, so "java\tscript:" is still seen as javascript:.
func normalizeURL(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		if r <= ' ' {
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

// summarizeSVG returns nil unless fragment is well-formed XML rooted at svg.
func summarizeSVG(fragment string) *SVGSummary {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(fragment); err != nil {
		return nil
	}

	root := doc.Root()
	if root == nil || !strings.EqualFold(root.Tag, "svg") {
		return nil
	}

	summary := &SVGSummary{
		ViewBox:  attrFold(root, "viewBox"),
		Width:    attrFold(root, "width"),
		Height:   attrFold(root, "height"),
		Elements: countElements(root),
	}
	if title := root.SelectElement("title"); title != nil {
		summary.Title = strings.TrimSpace(title.Text())
	}

	return summary
}

func countElements(el *etree.Element) int {
	n := 1
	for _, child := range el.ChildElements() {
		n += countElements(child)
	}

	return n
}

func attrFold(el *etree.Element, name string) string {
	for _, a := range el.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Value
		}
	}

	return ""
}
