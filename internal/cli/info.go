// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// ROLES
// =============================================================================

func newRolesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "roles [id]",
		Short: "List roles, or select one for the session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *App) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					role, err := app.Controller.SelectRole(args[0])
					if err != nil {
						return fmt.Errorf("%w (available: %s)", err, strings.Join(app.Config.RoleIDs(), ", "))
					}
					fmt.Fprintf(out, "%s %s\n", RenderConditional(SuccessStyle, "Role:"), role.Name)
					return nil
				}
				roles := app.Controller.Roles()
				if opts.jsonOutput {
					return NewJSONResponse("roles", roles).PrintTo(out)
				}
				printRoles(out, roles, app.Controller.Settings().ActiveRoleID)
				return nil
			})
		},
	}
}

// printRoles lists roles with the active one marked.
func printRoles(out io.Writer, roles []config.Role, activeID string) {
	for _, r := range roles {
		marker := "  "
		name := util.PadRight(r.ID, 12)
		if r.ID == activeID {
			marker = "* "
			name = RenderConditional(ActiveStyle, name)
		}
		prompt := util.TruncateWidth(util.CollapseWhitespace(r.Prompt), 50)
		fmt.Fprintf(out, "%s%s %s\n", marker, name, RenderConditional(DimStyle, r.Name+": "+prompt))
	}
}

// =============================================================================
// MODELS
// =============================================================================

func newModelsCmd(opts *rootOptions) *cobra.Command {
	var (
		remote   bool
		freeOnly bool
	)
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List suggested models, or every model OpenRouter offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models := model.SuggestedModels()
			if remote {
				cfg, _, err := opts.loadConfig()
				if err != nil {
					return err
				}
				models, err = newClient(cfg).ListModels(cmd.Context())
				if err != nil {
					return err
				}
			}
			if freeOnly {
				kept := models[:0]
				for _, m := range models {
					if m.Free {
						kept = append(kept, m)
					}
				}
				models = kept
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return NewJSONResponse("models", models).PrintTo(out)
			}
			shortNames := make(map[string]string, len(model.Suggested))
			for short, info := range model.Suggested {
				shortNames[info.ID] = short
			}
			for _, m := range models {
				free := ""
				if m.Free {
					free = RenderConditional(SuccessStyle, " free")
				}
				fmt.Fprintf(out, "%s %s %s%s\n",
					util.PadRight(m.ID, 44),
					util.PadRight(shortNames[m.ID], 14),
					util.PadRight(m.ContextString(), 6),
					free)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "fetch the live model list from OpenRouter")
	cmd.Flags().BoolVar(&freeOnly, "free", false, "only show free models")
	return cmd
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.jsonOutput {
				return NewJSONResponse("version", map[string]string{
					"version":    Version,
					"commit":     GitCommit,
					"build_date": BuildDate,
					"go":         runtime.Version(),
				}).PrintTo(cmd.OutOrStdout())
			}
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
			return nil
		},
	}
}
