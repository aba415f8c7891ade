// Package deploy is the deployment engine's main entry point: resolve a
// commit, check it out into an isolated directory, publish exports, and
// switch the active pointer, in the exact order the concurrency model
// requires.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gurre/xdgapp-deploy/adaptor/objectrepo"
	"github.com/gurre/xdgapp-deploy/logic/ref"
	"github.com/gurre/xdgapp-deploy/orchestration/active"
	"github.com/gurre/xdgapp-deploy/orchestration/export"
	"github.com/gurre/xdgapp-deploy/orchestration/installation"
	"github.com/gurre/xdgapp-deploy/orchestration/pull"
	"github.com/gurre/xdgapp-deploy/state/config"
	"github.com/gurre/xdgapp-deploy/state/layout"
	"github.com/gurre/xdgapp-deploy/state/xdgerr"
)

// Engine deploys and switches checkouts for a single installation.
type Engine struct {
	active *active.Manager
	export *export.Transformer
	puller *pull.Puller
	opts   config.Options
	logger *slog.Logger
}

// NewEngine assembles a deploy engine from its adaptors.
func NewEngine(activeMgr *active.Manager, exportTransformer *export.Transformer, puller *pull.Puller, opts config.Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{active: activeMgr, export: exportTransformer, puller: puller, opts: opts, logger: logger}
}

// Deploy resolves checksum (or the ref's local tip if checksum is empty),
// checks it out under inst, publishes exports for apps, and switches the
// ref's active pointer to it. Returns the checksum actually deployed.
//
// If export publishing fails validation, the checkout just created is
// removed entirely and neither a new checkout directory nor an active
// pointer is left behind.
func (e *Engine) Deploy(ctx context.Context, inst *installation.Installation, r ref.Ref, checksum string) (string, error) {
	repo, err := inst.EnsureRepo()
	if err != nil {
		return "", xdgerr.New(xdgerr.Store, "ensure repo", err)
	}
	l := inst.Layout()

	if checksum == "" {
		checksum, err = repo.ResolveRev(r.String())
		if err != nil {
			return "", xdgerr.New(xdgerr.Store, fmt.Sprintf("resolve tip of %s", r), err)
		}
	} else if !repo.HasObject(checksum) {
		if err := e.pullFromOrigin(ctx, inst, r, checksum); err != nil {
			return "", err
		}
	}

	checkoutDir := l.CheckoutDir(r, checksum)
	if _, err := os.Stat(checkoutDir); err == nil {
		return "", &xdgerr.Error{Kind: xdgerr.AlreadyDeployed, Op: "deploy", Path: checkoutDir}
	}

	_, tree, err := repo.ReadCommit(checksum)
	if err != nil {
		return "", xdgerr.New(xdgerr.Store, fmt.Sprintf("read commit %s", checksum), err)
	}

	mode := objectrepo.CheckoutBare
	if inst.IsUser() {
		mode = objectrepo.CheckoutUser
	}
	if err := repo.CheckoutTree(ctx, mode, checkoutDir, tree); err != nil {
		return "", xdgerr.NewPath(xdgerr.Store, "checkout tree", checkoutDir, err)
	}

	if err := e.writeRefSentinel(l.RefSentinel(checkoutDir)); err != nil {
		_ = os.RemoveAll(checkoutDir)
		return "", err
	}

	if r.IsApp() {
		if err := e.exportCheckout(l, r, checkoutDir); err != nil {
			_ = os.RemoveAll(checkoutDir)
			return "", err
		}
	}

	if err := e.active.SetActive(l, r, checksum); err != nil {
		return "", xdgerr.NewPath(xdgerr.IO, "set active", l.ActiveLink(r), err)
	}

	if r.IsApp() {
		if err := e.export.UpdateExports(ctx, l.ExportsDir(), e.opts.TriggerDir, e.opts.HelperPath, l.Root); err != nil {
			e.logger.Warn("update-exports failed after deploy", "ref", r, "error", err)
		}
	}

	return checksum, nil
}

func (e *Engine) pullFromOrigin(ctx context.Context, inst *installation.Installation, r ref.Ref, checksum string) error {
	originPath := inst.Layout().OriginFile(r)
	data, err := os.ReadFile(originPath)
	if err != nil {
		return xdgerr.NewPath(xdgerr.IO, "read origin", originPath, err)
	}
	remote := strings.TrimSpace(string(data))
	if err := e.puller.Pull(ctx, inst, r, remote, checksum, nil); err != nil {
		return xdgerr.New(xdgerr.Store, fmt.Sprintf("pull %s from %s", r, remote), err)
	}
	return nil
}

func (e *Engine) writeRefSentinel(sentinelPath string) error {
	if err := os.MkdirAll(filepath.Dir(sentinelPath), 0o755); err != nil {
		return xdgerr.NewPath(xdgerr.IO, "mkdir files", filepath.Dir(sentinelPath), err)
	}
	f, err := os.OpenFile(sentinelPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return xdgerr.NewPath(xdgerr.IO, "create ref sentinel", sentinelPath, err)
	}
	if err := f.Close(); err != nil {
		return xdgerr.NewPath(xdgerr.IO, "close ref sentinel", sentinelPath, err)
	}
	return nil
}

// exportCheckout mirrors checkoutDir/export into the shared exports
// directory, when that subtree exists. A bare checkout has no export/
// subdirectory and is silently skipped.
func (e *Engine) exportCheckout(l layout.Layout, r ref.Ref, checkoutDir string) error {
	source := l.ExportSourceDir(checkoutDir)
	if _, err := os.Stat(source); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return xdgerr.NewPath(xdgerr.IO, "stat export source", source, err)
	}

	rel, err := filepath.Rel(l.ExportsDir(), source)
	if err != nil {
		return xdgerr.New(xdgerr.IO, "compute export symlink prefix", err)
	}
	prefix := filepath.ToSlash(rel)

	if err := e.export.Export(r.Name, r.Branch, r.Arch, source, l.ExportsDir(), prefix); err != nil {
		return xdgerr.New(xdgerr.Validation, fmt.Sprintf("export %s", r), err)
	}
	return nil
}
