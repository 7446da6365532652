package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/safepreview/internal/sanitizer"
)

var sanitizeCmd = &cobra.Command{
	Use:   "sanitize [file]",
	Short: "Sanitize a fragment and print the result",
	Long: `Run a fragment through a sanitizer profile and print what survives.
Reads stdin when no file is given or the file is "-".

Examples:
  safepreview sanitize badge.svg                    # svg-profile by default
  safepreview sanitize --profile html-profile a.html
  cat badge.svg | safepreview sanitize --minify`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSanitize,
}

var sanitizeFlags *StandardFlags

func init() {
	rootCmd.AddCommand(sanitizeCmd)

	sanitizeFlags = &StandardFlags{}
	sanitizeCmd.Flags().StringVar(&sanitizeFlags.Profile, "profile", "", "Sanitizer profile (default svg-profile)")
	sanitizeCmd.Flags().BoolVar(&sanitizeFlags.Minify, "minify", false, "Minify the sanitized SVG")
	AddFlagValidation(sanitizeCmd, "profile", func(v string) error {
		_, err := sanitizer.ParseProfile(v)
		return err
	})
}

func runSanitize(cmd *cobra.Command, args []string) error {
	profile, err := sanitizeFlags.ProfileOr(sanitizer.ProfileSVG)
	if err != nil {
		return err
	}

	input, err := readInput(cmd, inputArg(args))
	if err != nil {
		return err
	}

	out, err := sanitizeFragment(sanitizer.New(), input, profile, sanitizeFlags.Minify)
	if err != nil {
		return err
	}

	_, err = io.WriteString(cmd.OutOrStdout(), out+"\n")

	return err
}

func sanitizeFragment(s sanitizer.Sanitizer, input string, profile sanitizer.Profile, minify bool) (string, error) {
	out, err := s.Sanitize(input, profile)
	if err != nil {
		return "", err
	}

	if minify {
		if profile != sanitizer.ProfileSVG {
			return "", fmt.Errorf("--minify only applies to %s", sanitizer.ProfileSVG)
		}
		if out, err = sanitizer.MinifySVG(out); err != nil {
			return "", err
		}
	}

	return out, nil
}
