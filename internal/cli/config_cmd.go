// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Inspect and edit the config file.
//
// Examples:
//   rigchat config show
//   rigchat config get cloud.default_model
//   rigchat config set ui.theme light

package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigchat/internal/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change configuration",
	}
	cmd.AddCommand(
		newConfigPathCmd(opts),
		newConfigShowCmd(opts),
		newConfigGetCmd(opts),
		newConfigSetCmd(opts),
		newConfigKeysCmd(),
		newConfigEditCmd(opts),
	)
	return cmd
}

func newConfigPathCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.resolveConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (API key redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}
}

func newConfigGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one effective config value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.loadConfig()
			if err != nil {
				return err
			}
			value, err := cfg.Get(args[0])
			if err != nil {
				return NewValidationError("key", args[0], err.Error())
			}
			// SECURITY: never echo the stored key.
			if strings.EqualFold(args[0], "cloud.api_key") && value != "" {
				value = "[REDACTED]"
			}
			if opts.jsonOutput {
				return NewJSONResponse("config get", map[string]interface{}{args[0]: value}).PrintTo(cmd.OutOrStdout())
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newConfigSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one value in the config file",
		Long: `Set writes a single key to the config file. Environment overrides are
not written back. Run "rigchat config keys" for the list of keys.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.resolveConfigPath()
			if err != nil {
				return err
			}
			if err := setConfigValue(path, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", RenderConditional(SuccessStyle, "Set"), args[0], args[1])
			return nil
		},
	}
}

// setConfigValue loads the file as written, without environment
// overrides, changes one key and saves it back.
func setConfigValue(path, key, value string) error {
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return err
		}
	}
	if err := cfg.Set(key, value); err != nil {
		return NewValidationError("key", key, err.Error())
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	return config.SaveTOML(cfg, path)
}

func newConfigKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List every settable key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range config.Keys() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

func newConfigEditCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Open the config file in $EDITOR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.resolveConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); os.IsNotExist(err) {
				if err := config.SaveTOML(config.Default(), path); err != nil {
					return err
				}
			}
			editor := strings.TrimSpace(os.Getenv("VISUAL"))
			if editor == "" {
				editor = strings.TrimSpace(os.Getenv("EDITOR"))
			}
			if editor == "" {
				editor = "vi"
			}
			fields := strings.Fields(editor)
			c := exec.CommandContext(cmd.Context(), fields[0], append(fields[1:], path)...)
			c.Stdin = os.Stdin
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			if err := c.Run(); err != nil {
				return NewCommandError("config", "edit", "editor exited with an error", err)
			}
			return nil
		},
	}
}
