//go:build property
// +build property

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestWrapProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("wrapping preserves the cause chain", prop.ForAll(
		func(depth int, msg string) bool {
			root := errors.New(msg)
			var err error = root
			for i := 0; i < depth; i++ {
				err = Wrap(err, ErrorTypeInternal, fmt.Sprintf("ERR_%d", i), "layer")
			}

			return errors.Is(err, root) && GetRootCause(err) == root
		},
		gen.IntRange(1, 10),
		gen.AlphaString(),
	))

	properties.Property("outermost code wins", prop.ForAll(
		func(code string) bool {
			inner := NewValidationError("ERR_INNER", "inner")
			err := Wrap(inner, ErrorTypeConfig, code, "outer")

			return HasCode(err, code) && err.Type == ErrorTypeConfig
		},
		gen.Identifier(),
	))

	properties.Property("combine drops nils and keeps order", prop.ForAll(
		func(n int) bool {
			var errs []error
			for i := 0; i < n; i++ {
				errs = append(errs, nil, fmt.Errorf("e%d", i))
			}

			parts := Errors(CombineErrors(errs...))
			if len(parts) != n {
				return false
			}
			for i, part := range parts {
				if part.Error() != fmt.Sprintf("e%d", i) {
					return false
				}
			}

			return true
		},
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}
