package app

import (
	"context"
	"fmt"

	"github.com/codelet/clet/internal/codelet"
	"github.com/codelet/clet/internal/config"
	"github.com/codelet/clet/internal/prefs"
	"github.com/codelet/clet/internal/session"
	"github.com/codelet/clet/internal/snippets"
	"github.com/codelet/clet/internal/ui"
)

// Options configure the clet application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/clet/prefs.toml
	ServerURL  string // overrides the configured server when set
}

// Run boots the clet TUI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.ServerURL != "" {
		cfg.ServerURL = opts.ServerURL
	}

	userPrefs, err := prefs.Open(opts.PrefsPath)
	if err != nil {
		return fmt.Errorf("open prefs: %w", err)
	}

	client, err := codelet.NewClient(cfg.ServerURL, cfg.Timeout)
	if err != nil {
		return fmt.Errorf("init codelet client: %w", err)
	}

	sessions := session.NewManager(client, userPrefs)
	store := snippets.New(client, sessions, userPrefs)

	return ui.Run(ui.Options{
		Context:   ctx,
		Sessions:  sessions,
		Store:     store,
		Directory: client,
		Prefs:     userPrefs,
		ThemeName: userPrefs.Theme(),
	})
}
