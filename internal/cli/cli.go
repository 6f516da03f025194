// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/logging"
	"github.com/jeranaias/rigchat/internal/model"
)

// Version information, set by main from build flags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// ROOT COMMAND
// =============================================================================

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	model      string
	backend    string
	logLevel   string
	jsonOutput bool
	plain      bool
}

// NewRootCmd builds the rigchat command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "rigchat",
		Short: "Chat with OpenRouter models from the terminal",
		Long: `rigchat streams answers from OpenRouter chat models, renders them as
formatted markdown with highlighted code, and keeps every conversation on disk.

Run without arguments for the full-screen interface. When stdin or stdout is
not a terminal, or with --plain, a line-oriented chat starts instead.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.plain || !Interactive() {
				return runChat(cmd, opts)
			}
			return runTUI(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file (default ~/.rigchat/config.toml)")
	pf.StringVarP(&opts.model, "model", "m", "", "model ID or short name to use")
	pf.StringVar(&opts.backend, "storage", "", "storage backend: file, sqlite or memory")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.BoolVar(&opts.jsonOutput, "json", false, "print machine-readable JSON where supported")
	root.Flags().BoolVar(&opts.plain, "plain", false, "use the line-oriented chat instead of the TUI")

	root.Version = Version
	root.SetVersionTemplate(versionString() + "\n")

	root.AddCommand(
		newChatCmd(opts),
		newAskCmd(opts),
		newListCmd(opts),
		newNewCmd(opts),
		newSwitchCmd(opts),
		newExportCmd(opts),
		newRolesCmd(opts),
		newModelsCmd(opts),
		newResetCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(opts),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context) int {
	defer logging.Close()

	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		jsonMode, _ := root.PersistentFlags().GetBool("json")
		DisplayError(err, jsonMode)
	}
	return GetExitCode(err)
}

func versionString() string {
	if GitCommit != "unknown" && GitCommit != "" {
		return fmt.Sprintf("rigchat %s\n  commit: %s\n  built:  %s", Version, GitCommit, BuildDate)
	}
	return "rigchat " + Version
}

// =============================================================================
// CONFIG LOADING
// =============================================================================

// resolveConfigPath returns the --config flag or the default path.
func (o *rootOptions) resolveConfigPath() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	return config.Path()
}

// loadConfig reads the config file, applies environment and flag
// overrides, validates the result and starts logging.
func (o *rootOptions) loadConfig() (*config.Config, string, error) {
	path, err := o.resolveConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, path, err
	}
	cfg.ApplyEnvOverrides()
	o.applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}

	if logPath, err := cfg.LogPath(); err == nil {
		if err := logging.Init(logPath, cfg.Log.Level); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", RenderConditional(WarningStyle, "Warning:"), err)
		}
	}
	logging.For("cli").Debug("config loaded", "path", path, "backend", cfg.Storage.Backend)
	return cfg, path, nil
}

// applyFlags copies persistent flag overrides into cfg.
func (o *rootOptions) applyFlags(cfg *config.Config) {
	if o.model != "" {
		cfg.Cloud.DefaultModel = model.ResolveModel(o.model)
	}
	if o.backend != "" {
		cfg.Storage.Backend = o.backend
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
}

// modelOverride returns the resolved --model flag, or "".
func (o *rootOptions) modelOverride() string {
	if o.model == "" {
		return ""
	}
	return model.ResolveModel(o.model)
}
