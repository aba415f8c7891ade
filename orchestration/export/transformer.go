// Package export mirrors an application's export/ subtree into the shared
// exports/ tree as relative symlinks, rewriting .desktop and .service files
// in place so their Exec= line invokes the sandboxed launcher.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gurre/xdgapp-deploy/adaptor/filesystem"
	"github.com/gurre/xdgapp-deploy/adaptor/trigger"
	"github.com/gurre/xdgapp-deploy/state/config"
)

// Transformer walks an app's export/ subtree and plants it into exports/.
type Transformer struct {
	fs      *filesystem.Operator
	trigger *trigger.Runner
	opts    config.Options
	logger  *slog.Logger
}

// NewTransformer builds a Transformer from its adaptors.
func NewTransformer(fs *filesystem.Operator, triggerRunner *trigger.Runner, opts config.Options, logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{fs: fs, trigger: triggerRunner, opts: opts, logger: logger}
}

// Export mirrors source (an app's export/ directory) into destination
// (exports/), planting relative symlinks whose target is computed from
// symlinkPrefix, which should be "../{relpath from root to source}" at the
// top-level call.
func (t *Transformer) Export(app, branch, arch, source, destination, symlinkPrefix string) error {
	return t.exportDir(app, branch, arch, source, destination, symlinkPrefix, 0)
}

func (t *Transformer) exportDir(app, branch, arch, source, destination, prefix string, depth int) error {
	if depth > t.opts.ExportMaxDepth {
		t.logger.Warn("export recursion depth exceeded, skipping", "source", source, "depth", depth)
		return nil
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return fmt.Errorf("export: read %s: %w", source, err)
	}

	if err := t.fs.MkdirAll(destination); err != nil {
		return fmt.Errorf("export: mkdir %s: %w", destination, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		srcPath := filepath.Join(source, name)
		dstPath := filepath.Join(destination, name)

		switch {
		case entry.Type()&os.ModeSymlink != 0:
			t.logger.Warn("export entry is a symlink, skipping", "path", srcPath)

		case entry.IsDir():
			if err := t.exportDir(app, branch, arch, srcPath, dstPath, "../"+prefix, depth+1); err != nil {
				return err
			}

		case entry.Type().IsRegular():
			if err := t.exportFile(app, branch, arch, name, srcPath, dstPath, prefix); err != nil {
				return err
			}

		default:
			t.logger.Warn("export entry has unsupported type, skipping", "path", srcPath)
		}
	}
	return nil
}

func (t *Transformer) exportFile(app, branch, arch, name, srcPath, dstPath, prefix string) error {
	if !strings.HasPrefix(name, app) {
		t.logger.Warn("export file name does not start with app name, skipping", "path", srcPath, "app", app)
		return nil
	}

	if strings.HasSuffix(name, ".desktop") || strings.HasSuffix(name, ".service") {
		if err := t.rewriteDesktopFile(srcPath, app, branch, arch); err != nil {
			return err
		}
	}

	if err := t.fs.UnlinkIgnoreMissing(dstPath); err != nil {
		return fmt.Errorf("export: unlink %s: %w", dstPath, err)
	}
	target := prefix + "/" + name
	if err := os.Symlink(target, dstPath); err != nil {
		return fmt.Errorf("export: symlink %s -> %s: %w", dstPath, target, err)
	}
	return nil
}
