// Package layout maps an installation root and a ref/checksum pair onto the
// on-disk paths described by the data model: deploy bases, checkouts, the
// active symlink, exports, and per-app data areas. Every method here is a
// pure path join; none of them touch the filesystem.
package layout

import (
	"path/filepath"

	"github.com/gurre/xdgapp-deploy/logic/ref"
)

// Layout is a thin wrapper around an installation root directory.
type Layout struct {
	Root string
}

// New returns a Layout rooted at root.
func New(root string) Layout {
	return Layout{Root: root}
}

// RepoDir is the content-addressed object store directory.
//
//	l.RepoDir() // "/R/repo"
func (l Layout) RepoDir() string {
	return filepath.Join(l.Root, "repo")
}

// DeployBase is the directory holding every deployed checkout of r.
//
//	l.DeployBase(r) // "/R/app/org.example.Hello/x86_64/stable"
func (l Layout) DeployBase(r ref.Ref) string {
	return filepath.Join(l.Root, string(r.Type), r.Name, r.Arch, r.Branch)
}

// CheckoutDir is a single deployed checkout of r at checksum.
//
//	l.CheckoutDir(r, "abcd...") // ".../stable/abcd..."
func (l Layout) CheckoutDir(r ref.Ref, checksum string) string {
	return filepath.Join(l.DeployBase(r), checksum)
}

// RefSentinel is the liveness sentinel inside a checkout directory.
func (l Layout) RefSentinel(checkoutDir string) string {
	return filepath.Join(checkoutDir, "files", ".ref")
}

// ExportSourceDir is the subtree inside a checkout that the export
// transformer mirrors into ExportsDir, for app checkouts only.
func (l Layout) ExportSourceDir(checkoutDir string) string {
	return filepath.Join(checkoutDir, "export")
}

// ActiveLink is the active symlink path under a ref's deploy base.
func (l Layout) ActiveLink(r ref.Ref) string {
	return filepath.Join(l.DeployBase(r), "active")
}

// OriginFile names the remote a ref's commits should be pulled from.
func (l Layout) OriginFile(r ref.Ref) string {
	return filepath.Join(l.DeployBase(r), "origin")
}

// ExportsDir is the shared destination for exported desktop/service files.
func (l Layout) ExportsDir() string {
	return filepath.Join(l.Root, "exports")
}

// RemovedDir is the staging area for undeployed checkouts awaiting GC.
func (l Layout) RemovedDir() string {
	return filepath.Join(l.Root, ".removed")
}

// AppDataDir is the per-app writable data area, owned by the app itself.
func (l Layout) AppDataDir(name string) string {
	return filepath.Join(l.Root, "app", name, "data")
}

// TypeDir is the directory holding every name of the given ref type,
// used when enumerating deployed refs.
func (l Layout) TypeDir(t ref.Type) string {
	return filepath.Join(l.Root, string(t))
}

// LegacyActiveCheckPath reproduces the existence-check path used by
// collect-deployed-refs, which swaps branch and arch relative to DeployBase.
// This keeps that inconsistency with the deploy layout rather than
// correcting it; see DESIGN.md for why it is kept as-is.
func (l Layout) LegacyActiveCheckPath(t ref.Type, name, branch, arch string) string {
	return filepath.Join(l.Root, string(t), name, branch, arch, "active")
}
