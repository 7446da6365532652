// Package cmd is the safepreview command line.
//
// Configuration is read from, highest priority first:
//
//  1. command-line flags (--config, --port, ...)
//  2. SAFEPREVIEW_CONFIG_FILE, a path to the config file
//  3. SAFEPREVIEW_<SECTION>_<OPTION> environment variables
//  4. .safepreview.yml in the working directory
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix         = "SAFEPREVIEW"
	envConfigFile     = "SAFEPREVIEW_CONFIG_FILE"
	defaultConfigName = ".safepreview"
	defaultConfigFile = defaultConfigName + ".yml"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "safepreview",
	Short: "Preview untrusted SVG, HTML and PDF content safely",
	Long: `safepreview serves a small site that renders untrusted fragments
through a sanitizer, offers download-only fallbacks for formats that cannot be
shown safely, and hosts a custom video player.

Quick Start:
  safepreview serve                      Start the site with live reload
  safepreview sanitize badge.svg         Sanitize a file to stdout
  safepreview render /img/xss.svg        Render a locator as the site would
  safepreview inspect badge.svg          List scripts and handlers in a file
  safepreview profiles                   List sanitizer profiles`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is "+defaultConfigFile+", can also use "+envConfigFile+")")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	case os.Getenv(envConfigFile) != "":
		viper.SetConfigFile(os.Getenv(envConfigFile))
	default:
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(defaultConfigName)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// A missing file is fine; defaults apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// configPath names the file a configuration error most likely came from.
func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	if cfgFile != "" {
		return cfgFile
	}
	if env := os.Getenv(envConfigFile); env != "" {
		return env
	}

	return defaultConfigFile
}
