package search

import (
	"context"
	"log/slog"

	"github.com/table1837/eightysix/pkg/filewatch"
)

// Watch rebuilds the Index from the catalog at path after every change and
// passes it to onChange. It runs until ctx is cancelled.
//
// An unreadable or invalid catalog is logged and skipped, so the previous
// index stays in service.
func Watch(ctx context.Context, path string, onChange func(*Index)) error {
	slog.Info("search: watching catalog", "path", path)
	return filewatch.Watch(ctx, path, filewatch.DefaultDebounce, func() {
		items, err := LoadCatalog(path)
		if err != nil {
			slog.Error("search: catalog reload failed, keeping previous index", "path", path, "err", err)
			return
		}
		slog.Info("search: catalog reloaded", "path", path, "items", len(items))
		onChange(NewIndex(items))
	})
}
