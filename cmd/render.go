package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/safepreview/internal/config"
	"github.com/conneroisu/safepreview/internal/download"
	"github.com/conneroisu/safepreview/internal/errors"
	"github.com/conneroisu/safepreview/internal/fetch"
	"github.com/conneroisu/safepreview/internal/fragment"
	"github.com/conneroisu/safepreview/internal/logging"
	"github.com/conneroisu/safepreview/internal/sanitizer"
	"github.com/conneroisu/safepreview/internal/validation"
	"github.com/conneroisu/safepreview/web"
)

const renderTimeout = 15 * time.Second

var renderCmd = &cobra.Command{
	Use:   "render <file|locator|->",
	Short: "Render a fragment the way the site inserts it",
	Long: `Load a fragment and print the markup the site would insert for it.

The argument is a file on disk, a site path such as /img/xss.svg resolved
against the asset store, an http(s) URL, or "-" for stdin. Formats without a
safe inline rendering, such as PDF, print the download link instead.

Examples:
  safepreview render /img/xss.svg
  safepreview render /img/xss.svg --mode raw
  safepreview render https://example.com/badge.svg --profile strict-profile
  safepreview render /uploads/sample.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var renderFlags *StandardFlags

func init() {
	rootCmd.AddCommand(renderCmd)

	renderFlags = AddStandardFlags(renderCmd, "render")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.NewEnhancedError("Failed to load configuration", err,
			errors.ConfigurationError(err.Error(), configPath()))
	}

	mode, err := renderFlags.ModeOr(cfg.Mode())
	if err != nil {
		return err
	}
	profile, err := renderFlags.ProfileOr(cfg.Profile())
	if err != nil {
		return err
	}

	logger := logging.NewLogger(cfg.Logging.LoggerConfig(os.Stderr))

	ctx, cancel := context.WithTimeout(cmd.Context(), renderTimeout)
	defer cancel()

	locator := args[0]
	content, err := loadRenderInput(ctx, cmd, cfg, locator)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()

	head := []byte(content)
	if len(head) > 512 {
		head = head[:512]
	}
	if locator != "-" && download.DispositionFor(download.Classify(locator, head)) == download.DownloadOnly {
		link := download.Link{FileURL: locator, FileName: download.FileName(locator)}
		if err := link.Component().Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	}

	renderer := fragment.NewRenderer(sanitizer.New(),
		fragment.WithLogger(logger),
		fragment.WithAllowRaw(cfg.Render.AllowRaw),
		fragment.WithSVGMinify(cfg.Render.MinifySVG || renderFlags.Minify),
	)

	out := renderer.String(ctx, fragment.Fragment{Content: content, Locator: locator}, mode, profile)
	if out == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Nothing to render.")
		return nil
	}

	_, err = io.WriteString(w, out+"\n")

	return err
}

// loadRenderInput prefers a file on disk, then resolves the argument as a
// locator: site paths from the asset store, URLs over HTTP.
func loadRenderInput(ctx context.Context, cmd *cobra.Command, cfg *config.Config, locator string) (string, error) {
	if locator == "-" {
		return readInput(cmd, locator)
	}
	if info, err := os.Stat(locator); err == nil && !info.IsDir() {
		return readInput(cmd, locator)
	}

	if err := validation.ValidateLocator(locator); err != nil {
		return "", errors.NewEnhancedError("Cannot load "+locator, err, errors.FetchError(err, locator))
	}

	assets := web.Assets()
	if cfg.Content.AssetsDir != "" {
		assets = os.DirFS(cfg.Content.AssetsDir)
	}

	loader := fetch.RoutingLoader{Local: fetch.NewFSLoader(assets, cfg.Fetch.MaxBytes)}
	if validation.IsRemote(locator) {
		remote, err := fetch.NewHTTPLoader(fetch.HTTPLoaderConfig{
			MaxBytes:  cfg.Fetch.MaxBytes,
			UserAgent: cfg.Fetch.UserAgent,
		})
		if err != nil {
			return "", err
		}
		loader.Remote = remote
	}

	content, err := loader.Load(ctx, locator)
	if err != nil {
		return "", errors.NewEnhancedError("Cannot load "+locator, err, errors.FetchError(err, locator))
	}

	return content, nil
}
