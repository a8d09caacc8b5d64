// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigil-dev/kgraph/internal/config"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

// cli carries state shared by every subcommand of one root command.
type cli struct {
	v *viper.Viper
}

// NewRootCmd creates the root kgraph command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:           "kgraph",
		Short:         "kgraph: a cached knowledge graph of code entities",
		Long:          "kgraph stores entities, relations and observations about a codebase and serves them over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.initViper(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "log at debug level")

	root.AddCommand(
		c.newServeCmd(),
		c.newStatsCmd(),
		c.newCheckCmd(),
		c.newOrphansCmd(),
		c.newBackupCmd(),
		c.newRestoreCmd(),
		c.newClearCmd(),
		c.newVacuumCmd(),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper applies defaults, env bindings, flag bindings and the config
// file so precedence is flag > env > file > defaults.
func (c *cli) initViper(cmd *cobra.Command) error {
	v := c.v
	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return kgerr.Errorf(kgerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is omitted so viper never matches the bare ./kgraph binary.
		v.SetConfigName("kgraph")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/kgraph")
		v.AddConfigPath("/etc/kgraph")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return kgerr.Errorf(kgerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if err := c.bootstrap(); err != nil {
				return err
			}
		}
	}
	config.WarnInsecurePermissions(slog.Default(), v.ConfigFileUsed())

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return kgerr.Errorf(kgerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}
	return nil
}

// bootstrap writes and reads a default config when none was found.
// Failing to write one is not fatal: defaults and env still apply.
func (c *cli) bootstrap() error {
	path, err := config.DefaultConfigPath()
	if err != nil {
		slog.Debug("no default config location", "error", err)
		return nil
	}
	if _, err := config.Bootstrap(path); err != nil {
		slog.Warn("could not write default config", "path", path, "error", err)
		return nil
	}
	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		return kgerr.Errorf(kgerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
	}
	return nil
}

// loadConfig decodes and validates the configuration initViper prepared.
func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.FromViper(c.v, secretStoreFactory())
	if err != nil {
		return nil, err
	}
	if c.v.GetBool("verbose") {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}
