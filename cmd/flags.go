package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/conneroisu/safepreview/internal/fetch"
	"github.com/conneroisu/safepreview/internal/fragment"
	"github.com/conneroisu/safepreview/internal/sanitizer"
)

var outputFormats = []string{"table", "json", "yaml"}

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Server flags
	Port   int
	Host   string
	NoOpen bool

	// Render flags
	Profile string
	Mode    string
	Minify  bool

	// Output flags
	OutputFormat string
	Quiet        bool
}

// AddStandardFlags adds the named flag groups to cmd.
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "server":
			addServerFlags(cmd, flags)
		case "render":
			addRenderFlags(cmd, flags)
		case "output":
			addOutputFlags(cmd, flags)
		}
	}

	return flags
}

func addServerFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().IntVarP(&flags.Port, "port", "p", 8080, "Port to serve on")
	cmd.Flags().StringVar(&flags.Host, "host", "localhost", "Host to bind to")
	cmd.Flags().BoolVar(&flags.NoOpen, "no-open", false, "Don't open browser automatically")
	AddFlagValidation(cmd, "port", ValidatePort)
}

func addRenderFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVar(&flags.Profile, "profile", "", "Sanitizer profile (svg-profile, html-profile, strict-profile)")
	cmd.Flags().StringVar(&flags.Mode, "mode", "", "Render mode (sanitized, raw)")
	cmd.Flags().BoolVar(&flags.Minify, "minify", false, "Minify sanitized SVG output")
	AddFlagValidation(cmd, "profile", func(v string) error {
		_, err := sanitizer.ParseProfile(v)
		return err
	})
	AddFlagValidation(cmd, "mode", func(v string) error {
		_, err := fragment.ParseMode(v)
		return err
	})
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.OutputFormat, "format", "f", "table", "Output format (table|json|yaml)")
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress output")
	AddFlagValidation(cmd, "format", func(v string) error {
		return ValidateFormatWithSuggestion(v, outputFormats)
	})
}

// ProfileOr returns the --profile value, or def when it was not given.
func (f *StandardFlags) ProfileOr(def sanitizer.Profile) (sanitizer.Profile, error) {
	if f.Profile == "" {
		return def, nil
	}

	return sanitizer.ParseProfile(f.Profile)
}

// ModeOr returns the --mode value, or def when it was not given.
func (f *StandardFlags) ModeOr(def fragment.Mode) (fragment.Mode, error) {
	if f.Mode == "" {
		return def, nil
	}

	return fragment.ParseMode(f.Mode)
}

// AddFlagValidation runs validator before the flag's value is set.
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}

	return v.Value.Set(val)
}

// ValidatePort checks a port flag value.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}

	return nil
}

// ValidateFormatWithSuggestion rejects formats outside valid and names the
// closest match.
func ValidateFormatWithSuggestion(format string, valid []string) error {
	for _, v := range valid {
		if format == v {
			return nil
		}
	}

	for _, v := range valid {
		if format != "" && (strings.HasPrefix(v, format) || strings.HasPrefix(format, v)) {
			return fmt.Errorf("invalid format %q, did you mean %q?", format, v)
		}
	}

	return fmt.Errorf("invalid format %q, must be one of: %s", format, strings.Join(valid, ", "))
}

// readInput reads the named file, or stdin when name is empty or "-".
func readInput(cmd *cobra.Command, name string) (string, error) {
	var r io.Reader
	if name == "" || name == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(name)
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, fetch.DefaultMaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	if int64(len(data)) > fetch.DefaultMaxBytes {
		return "", fmt.Errorf("input exceeds %d bytes", fetch.DefaultMaxBytes)
	}

	return string(data), nil
}

func inputArg(args []string) string {
	if len(args) == 0 {
		return ""
	}

	return args[0]
}
