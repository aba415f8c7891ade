package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RunTriggers enumerates triggerDir for *.trigger regular files and spawns
// the helper binary against each one. Per-trigger failures are logged and
// ignored; the overall call fails only if enumeration itself fails.
func (t *Transformer) RunTriggers(ctx context.Context, triggerDir, helperPath, installRoot string) error {
	entries, err := os.ReadDir(triggerDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("export: list triggers %s: %w", triggerDir, err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), ".trigger") {
			continue
		}
		triggerPath := filepath.Join(triggerDir, entry.Name())
		result, err := t.trigger.Run(ctx, helperPath, installRoot, triggerPath, t.opts.TriggerTimeout)
		if err != nil {
			t.logger.Warn("trigger failed", "trigger", entry.Name(), "error", err, "stderr", result.Stderr)
			continue
		}
		if result.ExitCode != 0 {
			t.logger.Warn("trigger exited non-zero", "trigger", entry.Name(), "exitCode", result.ExitCode, "stderr", result.Stderr)
		}
	}
	return nil
}

// UpdateExports prunes dangling symlinks beneath exportsDir (if it exists)
// and runs every trigger, the standard post-mutation step after any
// deploy/undeploy that touches an app's exports.
func (t *Transformer) UpdateExports(ctx context.Context, exportsDir, triggerDir, helperPath, installRoot string) error {
	if _, err := os.Stat(exportsDir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("export: stat %s: %w", exportsDir, err)
	}

	if _, err := t.fs.PruneDanglingSymlinks(exportsDir); err != nil {
		return fmt.Errorf("export: prune dangling symlinks: %w", err)
	}

	return t.RunTriggers(ctx, triggerDir, helperPath, installRoot)
}
