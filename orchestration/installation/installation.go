// Package installation is the deployment manager's root handle: one
// Installation per system or per-user root directory, lazily owning the
// directory tree and the object repository underneath it.
package installation

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/gurre/xdgapp-deploy/adaptor/objectrepo"
	"github.com/gurre/xdgapp-deploy/state/config"
	"github.com/gurre/xdgapp-deploy/state/layout"
)

// Installation owns an installation root: its on-disk layout, and the
// lazily-opened object repository underneath it.
type Installation struct {
	layout layout.Layout
	user   bool
	logger *slog.Logger

	mu   sync.Mutex
	repo *objectrepo.DiskRepo
}

// New returns an Installation rooted at root. user selects BareUser
// permissions (0700) when the repository is first created.
func New(root string, user bool, logger *slog.Logger) *Installation {
	if logger == nil {
		logger = slog.Default()
	}
	return &Installation{layout: layout.New(root), user: user, logger: logger}
}

// Layout exposes the installation's path helpers.
func (i *Installation) Layout() layout.Layout { return i.layout }

// IsUser reports whether this is a per-user installation.
func (i *Installation) IsUser() bool { return i.user }

// EnsurePath creates the installation root if it does not already exist,
// mode 0777 modulated by umask. The user/system split only matters for the
// repository mode (see EnsureRepo); the installation root itself is always
// as permissive as the umask allows.
func (i *Installation) EnsurePath() error {
	if err := os.MkdirAll(i.layout.Root, 0o777); err != nil {
		return fmt.Errorf("installation: ensure path %s: %w", i.layout.Root, err)
	}
	return nil
}

// EnsureRepo opens the installation's object repository, creating it on
// first use. Subsequent calls return the same *objectrepo.DiskRepo.
func (i *Installation) EnsureRepo() (*objectrepo.DiskRepo, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.repo != nil {
		return i.repo, nil
	}

	if err := i.EnsurePath(); err != nil {
		return nil, err
	}

	repoDir := i.layout.RepoDir()
	repo := objectrepo.New(repoDir, i.logger)

	if _, err := os.Stat(repoDir); os.IsNotExist(err) {
		mode := objectrepo.Bare
		if i.user {
			mode = objectrepo.BareUser
		}
		if err := repo.Create(mode); err != nil {
			_ = os.RemoveAll(repoDir)
			return nil, fmt.Errorf("installation: create repository %s: %w", repoDir, err)
		}
	} else if err := repo.Open(); err != nil {
		return nil, fmt.Errorf("installation: while opening repository %s: %w", repoDir, err)
	}

	i.repo = repo
	return repo, nil
}

var (
	systemOnce sync.Once
	systemInst *Installation

	userOnce sync.Once
	userInst *Installation
)

// GetSystem returns the process-wide system installation singleton, rooted
// at opts.SystemDir.
func GetSystem(opts config.Options, logger *slog.Logger) *Installation {
	systemOnce.Do(func() {
		systemInst = New(opts.SystemDir, false, logger)
	})
	return systemInst
}

// GetUser returns the process-wide per-user installation singleton, rooted
// at the user's data directory joined with opts.UserSubdir.
func GetUser(opts config.Options, logger *slog.Logger) (*Installation, error) {
	var initErr error
	userOnce.Do(func() {
		base, err := userDataDir()
		if err != nil {
			initErr = err
			return
		}
		userInst = New(fmt.Sprintf("%s/%s", base, opts.UserSubdir), true, logger)
	})
	if initErr != nil {
		return nil, initErr
	}
	return userInst, nil
}

// Get returns the system or user singleton depending on user.
func Get(user bool, opts config.Options, logger *slog.Logger) (*Installation, error) {
	if user {
		return GetUser(opts, logger)
	}
	return GetSystem(opts, logger), nil
}

// userDataDir mirrors glib's g_get_user_data_dir: $XDG_DATA_HOME if set,
// otherwise $HOME/.local/share.
func userDataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("installation: resolve user data dir: %w", err)
	}
	return home + "/.local/share", nil
}
