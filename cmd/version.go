package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/conneroisu/safepreview/internal/version"
	"github.com/spf13/cobra"
)

var (
	versionFormat string
	versionShort  bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the version, git commit, build time, Go version and platform.

Examples:
  safepreview version
  safepreview version --detailed
  safepreview version --format json`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().Bool("detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, _ []string) error {
	detailed, _ := cmd.Flags().GetBool("detailed")
	w := cmd.OutOrStdout()

	switch versionFormat {
	case "json":
		return outputVersionJSON(w)
	case "text":
		switch {
		case versionShort:
			fmt.Fprintln(w, version.GetShortVersion())
			return nil
		case detailed:
			return outputVersionDetailed(w)
		default:
			return outputVersionDefault(w)
		}
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", versionFormat)
	}
}

func outputVersionDefault(w io.Writer) error {
	info := version.GetBuildInfo()

	fmt.Fprintf(w, "safepreview %s", info.Version)

	if info.GitCommit != "unknown" && len(info.GitCommit) >= 7 {
		fmt.Fprintf(w, " (%s)", info.GitCommit[:7])
	}

	if version.IsDirty() {
		fmt.Fprint(w, " (dirty)")
	}

	fmt.Fprintln(w)

	if !info.BuildTime.IsZero() {
		fmt.Fprintf(w, "Built: %s\n", info.BuildTime.Format("2006-01-02 15:04:05 UTC"))
	}

	fmt.Fprintf(w, "Go: %s\n", info.GoVersion)
	fmt.Fprintf(w, "Platform: %s\n", info.Platform)

	return nil
}

func outputVersionDetailed(w io.Writer) error {
	fmt.Fprintln(w, version.GetDetailedVersion())

	if version.IsDirty() {
		fmt.Fprintln(w, "Working directory: dirty")
	}

	if version.IsRelease() {
		fmt.Fprintln(w, "Build type: release")
	} else {
		fmt.Fprintln(w, "Build type: development")
	}

	return nil
}

func outputVersionJSON(w io.Writer) error {
	info := version.GetBuildInfo()

	jsonInfo := map[string]interface{}{
		"version":    info.Version,
		"git_commit": info.GitCommit,
		"build_time": info.BuildTime,
		"go_version": info.GoVersion,
		"platform":   info.Platform,
		"is_release": version.IsRelease(),
		"is_dirty":   version.IsDirty(),
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(jsonInfo)
}
