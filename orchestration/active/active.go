// Package active manages the "active" symlink under a ref's deploy base,
// the single pointer that names which checksum is currently deployed.
package active

import (
	"fmt"

	"github.com/gurre/xdgapp-deploy/adaptor/filesystem"
	"github.com/gurre/xdgapp-deploy/logic/ref"
	"github.com/gurre/xdgapp-deploy/state/layout"
)

// Manager reads and atomically repoints a ref's active symlink.
type Manager struct {
	fs *filesystem.Operator
}

// NewManager returns a Manager built on a filesystem operator.
func NewManager(fs *filesystem.Operator) *Manager {
	return &Manager{fs: fs}
}

// ReadActive returns the checksum r currently points at, ok=false if no
// active deployment is set.
func (m *Manager) ReadActive(l layout.Layout, r ref.Ref) (checksum string, ok bool, err error) {
	checksum, ok, err = m.fs.ReadLink(l.ActiveLink(r))
	if err != nil {
		return "", false, fmt.Errorf("active: read %s: %w", l.ActiveLink(r), err)
	}
	return checksum, ok, nil
}

// SetActive repoints r's active symlink at checksum atomically. An empty
// checksum clears the active pointer instead.
func (m *Manager) SetActive(l layout.Layout, r ref.Ref, checksum string) error {
	link := l.ActiveLink(r)
	if checksum == "" {
		if err := m.fs.UnlinkIgnoreMissing(link); err != nil {
			return fmt.Errorf("active: clear %s: %w", link, err)
		}
		return nil
	}
	if err := m.fs.AtomicSymlink(checksum, link); err != nil {
		return fmt.Errorf("active: set %s -> %s: %w", link, checksum, err)
	}
	return nil
}
