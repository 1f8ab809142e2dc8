package main

import (
	"fmt"
	"os"

	"github.com/dfryer1193/sitecounts/internal/config"
	"github.com/dfryer1193/sitecounts/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	cfgFile   string
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sitecounts",
	Short: "Serves posts with server-rendered site count blocks",
	Long: `sitecounts stores posts in SQLite, imports them from markdown files and
serves them over HTTP, rendering dynamic blocks such as xwp/site-counts on
every request.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.AddCommand(serveCmd, importCmd)
}

func initializeConfig(_ *cobra.Command) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	appConfig = cfg

	observability.SetupLogging(os.Stderr, cfg.LogLevel(), cfg.Log.Pretty)
	if cfg.File != "" {
		log.Info().Str("file", cfg.File).Msg("Using config file")
	} else {
		log.Info().Msg("No config file found, using defaults and environment")
	}

	return nil
}
