package sanitizer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/conneroisu/safepreview/internal/errors"
)

// Profile names a sanitization ruleset for one content class.
type Profile string

const (
	// ProfileSVG keeps SVG shapes, gradients and text with presentational
	// attributes only.
	ProfileSVG Profile = "svg-profile"
	// ProfileHTML keeps user-generated-content HTML (article bodies).
	ProfileHTML Profile = "html-profile"
	// ProfileStrict keeps text only.
	ProfileStrict Profile = "strict-profile"
)

// ProfileInfo describes a registered profile.
type ProfileInfo struct {
	Name        Profile `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
}

var descriptions = map[Profile]string{
	ProfileSVG:    "SVG shapes, gradients and text; presentational attributes only",
	ProfileHTML:   "user generated HTML: formatting, lists, tables, links and images",
	ProfileStrict: "text only, every element removed",
}

// ParseProfile validates a profile name.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := descriptions[p]; !ok {
		return "", errors.ErrUnknownProfile(s)
	}

	return p, nil
}

// Profiles lists the registered profiles sorted by name.
func Profiles() []ProfileInfo {
	infos := make([]ProfileInfo, 0, len(descriptions))
	for name, desc := range descriptions {
		infos = append(infos, ProfileInfo{Name: name, Description: desc})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	return infos
}

// The tokenizer lower-cases element and attribute names, so camelCase SVG
// names (linearGradient, viewBox) are registered in lower case.
var (
	svgContainers = []string{"svg", "g", "defs", "symbol"}
	svgShapes     = []string{
		"path", "circle", "ellipse", "line", "polyline", "polygon", "rect",
	}
	svgText     = []string{"text", "tspan", "title", "desc"}
	svgPaint    = []string{"lineargradient", "radialgradient", "stop", "clippath", "mask", "pattern"}
	svgElements = concat(svgContainers, svgShapes, svgText, svgPaint)

	// Paint values: keywords, hex, rgb()/rgba() and same-document references.
	paintValue = regexp.MustCompile(
		`^(?i)(none|currentcolor|transparent|[a-z]{1,20}|#[0-9a-f]{3,8}|rgba?\(\s*[0-9.%\s,]+\)|url\(\s*#[a-z0-9_-]+\s*\))$`)
	numberList   = regexp.MustCompile(`^[-+0-9.eE,\s]*$`)
	pathData     = regexp.MustCompile(`^[-+0-9.eEMmZzLlHhVvCcSsQqTtAa,\s]*$`)
	transform    = regexp.MustCompile(`^(?i)[a-z0-9().,\s+-]*$`)
	identifier   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_:.-]*$`)
	lengthValue  = regexp.MustCompile(`^[-+]?[0-9.]+(%|px|em|ex|pt|pc|cm|mm|in)?$`)
	aspectRatio  = regexp.MustCompile(`^(?i)(none|x(min|mid|max)y(min|mid|max))(\s+(meet|slice))?$`)
	fontFamily   = regexp.MustCompile(`^[A-Za-z0-9 ,'"-]*$`)
	keywordValue = regexp.MustCompile(`^(?i)[a-z-]{1,32}$`)
)

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}

	return out
}

// newSVGPolicy builds the svg-profile. Nothing that can reference another
// document is allowed: no href, no style, no foreignObject, no animation.
func newSVGPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(svgElements...)
	p.AllowNoAttrs().OnElements(svgElements...)

	p.AllowAttrs("xmlns").Matching(regexp.MustCompile(`^http://www\.w3\.org/2000/svg$`)).OnElements("svg")
	p.AllowAttrs("version").Matching(numberList).OnElements("svg")
	p.AllowAttrs("viewbox").Matching(numberList).OnElements("svg", "symbol", "pattern")
	p.AllowAttrs("preserveaspectratio").Matching(aspectRatio).OnElements("svg", "symbol", "pattern")

	p.AllowAttrs("id", "class").Matching(identifier).OnElements(svgElements...)
	p.AllowAttrs("role", "aria-label", "aria-hidden").OnElements(svgElements...)

	p.AllowAttrs("width", "height", "x", "y", "rx", "ry", "r", "cx", "cy",
		"x1", "y1", "x2", "y2", "fx", "fy", "dx", "dy", "offset",
		"stroke-width", "stroke-miterlimit", "font-size", "opacity",
		"fill-opacity", "stroke-opacity", "stop-opacity").
		Matching(lengthValue).OnElements(svgElements...)

	p.AllowAttrs("points", "stroke-dasharray").Matching(numberList).OnElements(svgElements...)
	p.AllowAttrs("d").Matching(pathData).OnElements("path")
	p.AllowAttrs("transform", "gradienttransform", "patterntransform").Matching(transform).OnElements(svgElements...)
	p.AllowAttrs("fill", "stroke", "stop-color").Matching(paintValue).OnElements(svgElements...)
	p.AllowAttrs("fill-rule", "clip-rule", "stroke-linecap", "stroke-linejoin",
		"text-anchor", "dominant-baseline", "font-weight", "font-style",
		"gradientunits", "patternunits", "clippathunits", "spreadmethod", "visibility").
		Matching(keywordValue).OnElements(svgElements...)
	p.AllowAttrs("font-family").Matching(fontFamily).OnElements(svgElements...)
	p.AllowAttrs("clip-path", "mask").Matching(paintValue).OnElements(svgElements...)

	// script and style are skipped by default; the rest would leak text.
	p.SkipElementsContent("foreignobject", "animate", "set", "animatetransform", "animatemotion")

	return p
}

func newHTMLPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^[A-Za-z0-9 _-]+$`)).OnElements("code", "pre", "span", "div")

	return p
}

func newStrictPolicy() *bluemonday.Policy {
	return bluemonday.StrictPolicy()
}
