// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ManuGH/loopcast/internal/config"
	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/version"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "loopcast",
		Short:        "Relay a video source to a live RTMP endpoint",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadDotEnv(opts.envFile)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (YAML); defaults to <dataDir>/config.yaml when present")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	serve := newServeCmd(opts)
	root.AddCommand(serve, newCleanCmd(opts), newVersionCmd())
	// bare invocation serves
	root.RunE = serve.RunE
	return root
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is fine.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	logger := log.WithComponent("cli")
	logger.Debug().Str(log.FieldPath, path).Msg("loaded dotenv file")
	return nil
}

// loadConfig resolves the config file, loads it and reconfigures logging.
func loadConfig(opts *rootOptions) (config.AppConfig, error) {
	path := strings.TrimSpace(opts.configPath)
	source := "file"
	if path == "" {
		source = "env+defaults"
		dataDir := strings.TrimSpace(config.ParseString(config.EnvDataDir, "."))
		auto := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(auto); err == nil {
			path = auto
			source = "file(auto)"
		}
	}

	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		return cfg, err
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger := log.WithComponent("cli")
	logger.Info().
		Str(log.FieldEvent, "config.loaded").
		Str("source", source).
		Str(log.FieldPath, path).
		Msg("configuration loaded")
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write([]byte(version.String() + "\n"))
			return err
		},
	}
}
