package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/safepreview/internal/config"
	"github.com/conneroisu/safepreview/internal/errors"
	"github.com/conneroisu/safepreview/internal/logging"
	"github.com/conneroisu/safepreview/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the site with live reload",
	Long: `Start the site: articles, the SVG, PDF and video demos, and the
sanitize API. Content directories are watched and open pages reload when a
file changes.

Examples:
  safepreview serve                         # Serve the embedded sample content
  safepreview serve --articles ./articles   # Serve articles from disk
  safepreview serve -p 3000 --no-open       # Different port, no browser`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	AddStandardFlags(serveCmd, "server")
	serveCmd.Flags().Bool("open", false, "Open the browser once the server is up")
	serveCmd.Flags().String("articles", "", "Directory of markdown articles (default: embedded)")
	serveCmd.Flags().String("assets", "", "Directory of images, uploads and media (default: embedded)")
	serveCmd.Flags().Bool("watch", true, "Reload pages when content changes")
	serveCmd.Flags().Bool("drafts", false, "List draft articles")
	serveCmd.Flags().String("environment", "development", "Security preset (development, production)")

	bindings := map[string]string{
		"server.port":          "port",
		"server.host":          "host",
		"server.no-open":       "no-open",
		"server.open":          "open",
		"server.environment":   "environment",
		"content.articles_dir": "articles",
		"content.assets_dir":   "assets",
		"content.watch":        "watch",
		"content.show_drafts":  "drafts",
	}
	for key, flag := range bindings {
		_ = viper.BindPFlag(key, serveCmd.Flags().Lookup(flag))
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.NewEnhancedError("Failed to load configuration", err,
			errors.ConfigurationError(err.Error(), configPath()))
	}

	logger := logging.NewLogger(cfg.Logging.LoggerConfig(os.Stderr))

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	fmt.Fprintf(cmd.OutOrStdout(), "Starting safepreview at http://%s\n", cfg.Server.Address())

	select {
	case err := <-errCh:
		_ = srv.Shutdown(context.Background())
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %s", errors.FormatError(err))
	}

	return <-errCh
}
