// Package markup is the only place in the module that turns a string into
// trusted markup and writes it unescaped. It lives under internal/fragment
// so that the fragment renderer is the only package able to import it.
package markup

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/google/safehtml"
	"github.com/google/safehtml/uncheckedconversions"
)

// FromSanitized promotes sanitizer output to trusted markup.
func FromSanitized(sanitized string) safehtml.HTML {
	return uncheckedconversions.HTMLFromStringKnownToSatisfyTypeContract(sanitized)
}

// FromUntrusted promotes a raw fragment to trusted markup without any
// checks. Callers must have decided, and logged, that the raw render path
// was explicitly requested.
func FromUntrusted(raw string) safehtml.HTML {
	return uncheckedconversions.HTMLFromStringKnownToSatisfyTypeContract(raw)
}

// Insert writes h unescaped.
func Insert(h safehtml.HTML) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, h.String())

		return err
	})
}
