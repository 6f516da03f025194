// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/logging"
	"github.com/jeranaias/rigchat/internal/render"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/storage"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// App bundles the collaborators every front end needs.
type App struct {
	Config     *config.Config
	Store      *storage.SessionStore
	Client     *cloud.Client
	Controller *session.Controller
}

// openApp opens the session store, builds the completion client and starts
// a controller that draws into renderer. A model given with --model is
// applied to the loaded session.
func openApp(cfg *config.Config, renderer session.Renderer, modelOverride string) (*App, error) {
	path, err := cfg.StoragePath()
	if err != nil {
		return nil, err
	}
	kv, err := storage.Open(cfg.Storage.Backend, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}
	store := storage.NewSessionStore(kv, cfg.DefaultSettings())

	client := newClient(cfg)
	ctrl := session.NewController(session.Options{
		Store:     store,
		Completer: client,
		Renderer:  renderer,
		Roles:     cfg.AllRoles(),
	})
	if err := ctrl.Init(); err != nil {
		store.Close()
		return nil, err
	}
	if err := ctrl.LoadError(); err != nil {
		logging.For("cli").Warn("stored session was corrupt, starting fresh", "err", err)
	}

	if modelOverride != "" {
		settings := ctrl.Settings()
		if settings.Model != modelOverride {
			settings.Model = modelOverride
			if err := ctrl.UpdateSettings(settings); err != nil {
				store.Close()
				return nil, err
			}
		}
	}

	return &App{
		Config:     cfg,
		Store:      store,
		Client:     client,
		Controller: ctrl,
	}, nil
}

// Close releases the session store.
func (a *App) Close() error {
	return a.Store.Close()
}

// newClient builds an OpenRouter client from the [cloud] section.
func newClient(cfg *config.Config) *cloud.Client {
	return cloud.NewClient().
		WithBaseURL(cfg.Cloud.BaseURL).
		WithSiteURL(cfg.Cloud.Referer).
		WithSiteName(cfg.Cloud.Title).
		WithTimeout(cfg.Timeout()).
		WithUserAgent("rigchat/" + Version)
}

// newPipeline builds the markdown pipeline. Without color, prose and code
// pass through untouched so piped output stays clean.
func newPipeline(cfg *config.Config, color bool, width int) *render.Pipeline {
	if !color {
		return render.NewPipeline(nil, nil)
	}
	wrap := cfg.UI.WordWrap
	if wrap == 0 {
		wrap = width
	}
	hl := render.NewHighlighter(cfg.UI.CodeStyle)

	md, err := render.NewGlamourMarkdown(render.ResolveStyle(cfg.UI.Theme), wrap)
	if err != nil {
		logging.For("cli").Warn("markdown renderer unavailable, showing raw text", "err", err)
		return render.NewPipeline(nil, hl)
	}
	return render.NewPipeline(md, hl)
}
