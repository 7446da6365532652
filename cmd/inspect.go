package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/safepreview/internal/inspect"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "List the executable constructs in a fragment",
	Long: `Scan a fragment for script elements, event handlers, script URIs and
embedding elements, and summarize its SVG root. Reads stdin when no file is
given.

Examples:
  safepreview inspect badge.svg
  safepreview inspect badge.svg -f json
  safepreview inspect --fail upload.svg   # exit non-zero on any finding`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

var (
	inspectFlags *StandardFlags
	inspectFail  bool
)

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectFlags = AddStandardFlags(inspectCmd, "output")
	inspectCmd.Flags().BoolVar(&inspectFail, "fail", false, "Return an error when anything is found")
}

func runInspect(cmd *cobra.Command, args []string) error {
	input, err := readInput(cmd, inputArg(args))
	if err != nil {
		return err
	}

	report := inspect.Inspect(input)

	if !inspectFlags.Quiet {
		if err := writeReport(cmd.OutOrStdout(), report, inspectFlags.OutputFormat); err != nil {
			return err
		}
	}

	if inspectFail && !report.Clean() {
		return fmt.Errorf("%d findings", len(report.Findings))
	}

	return nil
}

func writeReport(w io.Writer, report inspect.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(report)
	case "table", "":
		return writeReportTable(w, report)
	default:
		return ValidateFormatWithSuggestion(format, outputFormats)
	}
}

func writeReportTable(w io.Writer, report inspect.Report) error {
	if report.SVG != nil {
		fmt.Fprintf(w, "SVG: %d elements", report.SVG.Elements)
		if report.SVG.Title != "" {
			fmt.Fprintf(w, ", title %q", report.SVG.Title)
		}
		if report.SVG.ViewBox != "" {
			fmt.Fprintf(w, ", viewBox %q", report.SVG.ViewBox)
		}
		fmt.Fprintln(w)
	}

	if report.Clean() {
		_, err := fmt.Fprintln(w, "No executable constructs found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tSEVERITY\tELEMENT\tATTRIBUTE\tVALUE")
	for _, f := range report.Findings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.Kind, f.Severity, f.Element, f.Attribute, truncate(f.Value, 40))
	}

	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n-1]) + "…"
}
