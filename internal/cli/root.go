package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"zipstream/pkg/config"
	"zipstream/pkg/logger"
)

type rootParams struct {
	configPath string
	logLevel   string
	logFormat  string
}

var (
	cfg       *config.Config
	cfgPath   string
	logCloser io.Closer
	rootFlags = &rootParams{}
)

// NewRootCmd builds the zipstream command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zipstream",
		Short: "Stream zip archives of server directories over HTTP",
		Long: `zipstream packs a directory into a zip archive on the fly while the client
downloads it. The archive is produced by an external tool and never touches
the disk. Downloads that stop early kill the tool immediately.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&rootFlags.configPath, "config", "c", "",
		"Path to config file (default: $ZIPSTREAM_CONFIG_PATH, ./config.yaml, ./config/config.yaml, /etc/zipstream/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "",
		"Log level (debug, info, warn, error); overrides the config file")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logFormat, "log-format", "",
		"Log format (text or json); overrides the config file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newDumpCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func Execute() error {
	return NewRootCmd().Execute()
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if rootFlags.configPath != "" {
		cfg, err = config.LoadFromFile(rootFlags.configPath)
		cfgPath = rootFlags.configPath
	} else {
		cfg, cfgPath, err = config.LoadConfig()
	}
	if err != nil {
		return err
	}
	if rootFlags.logLevel != "" {
		cfg.Logging.Level = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		cfg.Logging.Format = rootFlags.logFormat
	}

	logCloser, err = logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	if cfgPath == "" {
		logger.Debug("no config file found, using defaults and environment")
	} else {
		logger.Debug("configuration loaded", "path", cfgPath)
	}
	return nil
}
