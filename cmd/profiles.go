package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/safepreview/internal/sanitizer"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the sanitizer profiles",
	Long: `List the sanitizer profiles accepted by --profile, the sanitize API and
the render.default_profile setting.

Examples:
  safepreview profiles
  safepreview profiles -f yaml`,
	Args: cobra.NoArgs,
	RunE: runProfiles,
}

var profilesFlags *StandardFlags

func init() {
	rootCmd.AddCommand(profilesCmd)

	profilesFlags = AddStandardFlags(profilesCmd, "output")
}

func runProfiles(cmd *cobra.Command, _ []string) error {
	return writeProfiles(cmd.OutOrStdout(), sanitizer.Profiles(), profilesFlags.OutputFormat)
}

func writeProfiles(w io.Writer, profiles []sanitizer.ProfileInfo, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(profiles)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(profiles)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tDESCRIPTION")
		for _, p := range profiles {
			fmt.Fprintf(tw, "%s\t%s\n", p.Name, p.Description)
		}
		return tw.Flush()
	default:
		return ValidateFormatWithSuggestion(format, outputFormats)
	}
}
