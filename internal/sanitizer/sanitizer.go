// Package sanitizer wraps bluemonday behind a small adapter that maps named
// profiles to policies.
//
// Sanitize is a pure function of (fragment, profile): policies are built once
// in New and never mutated afterwards, so the same input always yields the
// same output and re-sanitizing an already sanitized fragment is a no-op.
package sanitizer

import (
	"fmt"

	"github.com/microcosm-cc/bluemonday"

	"github.com/conneroisu/safepreview/internal/errors"
)

// Sanitizer strips executable constructs from a markup fragment.
type Sanitizer interface {
	Sanitize(fragment string, profile Profile) (string, error)
}

// Adapter is the bluemonday-backed Sanitizer.
type Adapter struct {
	policies map[Profile]*bluemonday.Policy
}

// New builds every registered profile's policy.
func New() *Adapter {
	return &Adapter{
		policies: map[Profile]*bluemonday.Policy{
			ProfileSVG:    newSVGPolicy(),
			ProfileHTML:   newHTMLPolicy(),
			ProfileStrict: newStrictPolicy(),
		},
	}
}

// Sanitize returns fragment with everything profile does not permit removed.
// A panic inside the policy is recovered and reported as an error with an
// empty result.
func (a *Adapter) Sanitize(fragment string, profile Profile) (out string, err error) {
	policy, ok := a.policies[profile]
	if !ok {
		return "", errors.ErrUnknownProfile(string(profile))
	}

	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = errors.NewSanitizeError(errors.ErrCodeSanitizerPanic,
				"sanitizer panicked", fmt.Errorf("%v", r)).
				WithContext("profile", string(profile))
		}
	}()

	return policy.Sanitize(fragment), nil
}

// Has reports whether profile is registered with this adapter.
func (a *Adapter) Has(profile Profile) bool {
	_, ok := a.policies[profile]

	return ok
}

// Func adapts a plain function to the Sanitizer interface.
type Func func(fragment string, profile Profile) (string, error)

// Sanitize calls f.
func (f Func) Sanitize(fragment string, profile Profile) (string, error) {
	return f(fragment, profile)
}
