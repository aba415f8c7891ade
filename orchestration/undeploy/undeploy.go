// Package undeploy removes a checkout: repoint active away from it, move it
// out of its semantic location, and either delete it immediately or leave it
// for a later cleanup pass, depending on whether a live lock is held.
package undeploy

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gurre/xdgapp-deploy/adaptor/filesystem"
	"github.com/gurre/xdgapp-deploy/logic/ref"
	"github.com/gurre/xdgapp-deploy/orchestration/active"
	"github.com/gurre/xdgapp-deploy/orchestration/export"
	"github.com/gurre/xdgapp-deploy/orchestration/installation"
	"github.com/gurre/xdgapp-deploy/state/config"
	"github.com/gurre/xdgapp-deploy/state/layout"
	"github.com/gurre/xdgapp-deploy/state/xdgerr"
)

// Engine undeploys checkouts and garbage-collects the store underneath them.
type Engine struct {
	fs     *filesystem.Operator
	active *active.Manager
	export *export.Transformer
	opts   config.Options
	logger *slog.Logger
}

// NewEngine assembles an undeploy engine from its adaptors.
func NewEngine(fs *filesystem.Operator, activeMgr *active.Manager, exportTransformer *export.Transformer, opts config.Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{fs: fs, active: activeMgr, export: exportTransformer, opts: opts, logger: logger}
}

// Undeploy moves r's checkout at checksum out of its semantic location and
// deletes it outright when forceRemove is set or when nothing holds it
// locked; otherwise the moved copy is left for a later CleanupRemoved pass.
func (e *Engine) Undeploy(ctx context.Context, inst *installation.Installation, r ref.Ref, checksum string, forceRemove bool) error {
	if _, err := inst.EnsureRepo(); err != nil {
		return xdgerr.New(xdgerr.Store, "ensure repo", err)
	}
	l := inst.Layout()

	checkoutDir := l.CheckoutDir(r, checksum)
	if _, err := os.Stat(checkoutDir); err != nil {
		if os.IsNotExist(err) {
			return &xdgerr.Error{Kind: xdgerr.AlreadyUndeployed, Op: "undeploy", Path: checkoutDir}
		}
		return xdgerr.NewPath(xdgerr.IO, "stat checkout", checkoutDir, err)
	}

	if err := e.repointActiveAwayFrom(l, r, checksum); err != nil {
		return err
	}

	removedDir := l.RemovedDir()
	if err := os.MkdirAll(removedDir, 0o755); err != nil {
		return xdgerr.NewPath(xdgerr.IO, "mkdir removed", removedDir, err)
	}
	movedPath, err := moveToRemoved(removedDir, checksum, checkoutDir)
	if err != nil {
		return err
	}

	locked, err := e.fs.IsLocked(filepath.Join(movedPath, "files", ".ref"))
	if err != nil {
		e.logger.Warn("lock probe failed, leaving checkout for cleanup", "path", movedPath, "error", err)
		locked = true
	}
	if forceRemove || !locked {
		if err := e.fs.RemoveAll(movedPath); err != nil {
			return xdgerr.NewPath(xdgerr.IO, "delete removed checkout", movedPath, err)
		}
	}

	if r.IsApp() {
		if err := e.export.UpdateExports(ctx, l.ExportsDir(), e.opts.TriggerDir, e.opts.HelperPath, l.Root); err != nil {
			e.logger.Warn("update-exports failed after undeploy", "ref", r, "error", err)
		}
	}

	return nil
}

// repointActiveAwayFrom sets active to another deployed checksum under r, or
// clears it, when active currently points at checksum.
func (e *Engine) repointActiveAwayFrom(l layout.Layout, r ref.Ref, checksum string) error {
	current, ok, err := e.active.ReadActive(l, r)
	if err != nil {
		return xdgerr.NewPath(xdgerr.IO, "read active", l.ActiveLink(r), err)
	}
	if !ok || current != checksum {
		return nil
	}

	replacement, err := firstOtherDeployed(l.DeployBase(r), checksum)
	if err != nil {
		return xdgerr.NewPath(xdgerr.IO, "list deploy base", l.DeployBase(r), err)
	}
	if err := e.active.SetActive(l, r, replacement); err != nil {
		return xdgerr.NewPath(xdgerr.IO, "repoint active", l.ActiveLink(r), err)
	}
	return nil
}

func firstOtherDeployed(deployBase, exclude string) (string, error) {
	entries, err := os.ReadDir(deployBase)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	for _, entry := range entries {
		if !entry.IsDir() || !ref.IsChecksumName(entry.Name()) || entry.Name() == exclude {
			continue
		}
		return entry.Name(), nil
	}
	return "", nil
}

func moveToRemoved(removedDir, checksum, checkoutDir string) (string, error) {
	dest, err := randomRemovedPath(removedDir, checksum)
	if err != nil {
		return "", xdgerr.New(xdgerr.IO, "generate removed name", err)
	}
	if err := os.Rename(checkoutDir, dest); err != nil {
		return "", xdgerr.NewPath(xdgerr.IO, "move to removed", checkoutDir, err)
	}
	return dest, nil
}

// randomRemovedPath reserves a unique "{random}-{checksum}" name inside
// removedDir by creating and immediately discarding a temp file there, so
// the name is guaranteed free on the same filesystem the rename targets.
func randomRemovedPath(removedDir, checksum string) (string, error) {
	f, err := os.CreateTemp(removedDir, "*-"+checksum)
	if err != nil {
		return "", err
	}
	path := f.Name()
	_ = f.Close()
	_ = os.Remove(path)
	return path, nil
}

// CleanupRemoved enumerates .removed/ and deletes every subdirectory not
// currently locked. Recursive-delete failures are swallowed: this is a
// best-effort GC pass, not a reporting operation.
func (e *Engine) CleanupRemoved(inst *installation.Installation) error {
	removedDir := inst.Layout().RemovedDir()
	entries, err := os.ReadDir(removedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return xdgerr.NewPath(xdgerr.IO, "list removed", removedDir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(removedDir, entry.Name())
		locked, err := e.fs.IsLocked(filepath.Join(path, "files", ".ref"))
		if err != nil || locked {
			continue
		}
		_ = e.fs.RemoveAll(path)
	}
	return nil
}

// Prune ensures the repository is open, deletes every loose object
// unreachable from a ref tip, and reports the result through the logger's
// debug channel. The argument order of the reported counters deliberately
// matches (total, pruned): "objects_pruned" is a count out of "total".
func (e *Engine) Prune(ctx context.Context, inst *installation.Installation) (total, pruned int, freedBytes int64, err error) {
	repo, err := inst.EnsureRepo()
	if err != nil {
		return 0, 0, 0, xdgerr.New(xdgerr.Store, "ensure repo", err)
	}
	total, pruned, freedBytes, err = repo.Prune(ctx)
	if err != nil {
		return total, pruned, freedBytes, xdgerr.New(xdgerr.Store, "prune", err)
	}
	e.logger.Debug("pruned", "total", total, "pruned", pruned, "freedBytes", freedBytes)
	return total, pruned, freedBytes, nil
}
