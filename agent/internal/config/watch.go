package config

import (
	"context"
	"log/slog"

	"github.com/table1837/eightysix/pkg/filewatch"
)

// Watch reloads the config at path whenever it changes and hands the result
// to onChange. It runs until ctx is cancelled.
//
// A config that fails to load or validate is logged and skipped; the agent
// keeps running on the previous one.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	slog.Info("config: watching for changes", "path", path)
	return filewatch.Watch(ctx, path, filewatch.DefaultDebounce, func() {
		cfg, err := Load(path)
		if err != nil {
			slog.Error("config: reload failed, keeping previous config", "path", path, "err", err)
			return
		}
		slog.Info("config: reloaded", "path", path, "scope", cfg.Agent.Scope)
		onChange(cfg)
	})
}
