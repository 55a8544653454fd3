package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"intelscan/config"
	"intelscan/internal/logger"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "intelscan",
		Short:         "Detect threat-intel entities in page text and reconcile them across platforms",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to intelscan.yml")

	load := func() (*config.Config, string, error) {
		path := config.FindConfigFile(configPath)
		cfg, err := config.LoadConfig(path)
		if err != nil {
			if configPath != "" || !os.IsNotExist(err) {
				return nil, path, fmt.Errorf("load config: %w", err)
			}
			cfg = &config.Config{}
			path = ""
		}
		config.ApplyDefaults(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, path, fmt.Errorf("invalid config: %w", err)
		}
		l := cfg.IntelScan.Logging
		if err := logger.Init(l.Enabled, l.Level, l.File, l.Console); err != nil {
			return nil, path, fmt.Errorf("init logger: %w", err)
		}
		return cfg, path, nil
	}

	root.AddCommand(newRunCmd(load), newScanCmd(load), newResolveCmd(load), newPagesCmd(load))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "intelscan: %v\n", err)
		os.Exit(1)
	}
}
