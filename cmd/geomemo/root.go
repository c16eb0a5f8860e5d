package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configDir string
	logLevel  string
	storage   string
	dbPath    string
}

// apply copies explicitly set flags over the loaded configuration.
func (o *rootOptions) apply(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		viper.Set("logLevel", o.logLevel)
	}
	if flags.Changed("storage") {
		viper.Set("storage.type", o.storage)
	}
	if flags.Changed("db") {
		viper.Set("storage.sqlite.path", o.dbPath)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           appName,
		Short:         "Location-tagged notes with proximity reminders",
		Long:          `geomemo stores map markers with attached photos and notifies you when you come back within reach of one.`,
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configDir, "config-dir", "c", ".", "Directory containing geomemo.cfg.json")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.storage, "storage", "sqlite", "Storage backend (sqlite, memory)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "./geomemo.db", "SQLite database path")

	root.AddCommand(
		newInitCmd(opts),
		newMarkerCmd(opts),
		newImageCmd(opts),
		newExportCmd(opts),
		newBackupCmd(opts),
		newWatchCmd(opts),
		newShellCmd(opts),
	)
	return root
}
