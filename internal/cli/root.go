// Package cli implements the hrbridge command tree.
package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lfreitas-dev/hrbridge/internal/config"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	LogFile    string
}

// NewRootCommand creates the root command for the hrbridge CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "hrbridge",
		Short:         "hrbridge - HR to payroll synchronization",
		Long:          "Synchronizes employee records from the HR feed into the payroll and timekeeping system.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(opts, nil)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "hrbridge.yaml", "path to the configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "also log to this file, with rotation")

	cmd.AddCommand(NewSyncCommand(opts))
	for _, stage := range stageCommands {
		cmd.AddCommand(newStageCommand(opts, stage))
	}
	cmd.AddCommand(NewCacheCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// setupLogging installs the process-wide logger. Called once before config
// load with cfg=nil, and again after load so the config's log section can
// add file output. The flag wins over the config when both name a file.
func setupLogging(opts *RootOptions, cfg *config.Config) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	file := opts.LogFile
	var logCfg config.Log
	if cfg != nil {
		logCfg = cfg.Log
		if file == "" {
			file = logCfg.File
		}
	}
	if file != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    defaultInt(logCfg.MaxSizeMB, 10),
			MaxBackups: defaultInt(logCfg.MaxBackups, 5),
			MaxAge:     defaultInt(logCfg.MaxAgeDays, 30),
		})
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func defaultInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
