// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/logging"
	"github.com/jeranaias/rigchat/internal/transcript"
	"github.com/jeranaias/rigchat/internal/ui/chat"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// runTUI starts the full-screen interface.
func runTUI(cmd *cobra.Command, opts *rootOptions) error {
	cfg, cfgPath, err := opts.loadConfig()
	if err != nil {
		return err
	}

	tr := transcript.New(newPipeline(cfg, true, tuiWrapWidth()))
	app, err := openApp(cfg, tr, opts.modelOverride())
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	m := chat.New(chat.Options{
		Controller: app.Controller,
		Transcript: tr,
		ThemeMode:  cfg.UI.Theme,
		RenderFPS:  cfg.UI.RenderFPS,
		Context:    ctx,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	go func() {
		err := config.Watch(ctx, cfgPath, config.DefaultWatchDebounce, func(c *config.Config) {
			c.ApplyEnvOverrides()
			opts.applyFlags(c)
			p.Send(chat.ConfigReloadedMsg{Config: c})
		})
		if err != nil {
			logging.For("cli").Warn("config watch stopped", "err", err)
		}
	}()

	logging.For("cli").Info("starting TUI", "version", Version)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// tuiWrapWidth is the markdown wrap width for the transcript pane.
func tuiWrapWidth() int {
	w := GetTerminalWidth()
	if w >= 80 {
		w -= styles.SidebarWidth
	}
	// Transcript padding and bubble frame.
	return w - 6
}
