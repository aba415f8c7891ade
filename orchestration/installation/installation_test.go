package installation

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/gurre/xdgapp-deploy/adaptor/objectrepo"
	"github.com/gurre/xdgapp-deploy/state/config"
)

func TestEnsurePathCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "deeply", "nested", "root")
	inst := New(root, false, nil)

	if err := inst.EnsurePath(); err != nil {
		t.Fatalf("EnsurePath: %v", err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		t.Fatalf("root not created: %v", err)
	}
}

func TestEnsureRepoCreatesOnFirstUse(t *testing.T) {
	root := t.TempDir()
	inst := New(root, false, nil)

	repo, err := inst.EnsureRepo()
	if err != nil {
		t.Fatalf("EnsureRepo: %v", err)
	}

	checksum, err := repo.PutObject('B', []byte("payload"))
	if err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if !repo.HasObject(checksum) {
		t.Error("object not stored in newly created repo")
	}
}

func TestEnsureRepoReturnsSameInstance(t *testing.T) {
	root := t.TempDir()
	inst := New(root, false, nil)

	repo1, err := inst.EnsureRepo()
	if err != nil {
		t.Fatalf("EnsureRepo: %v", err)
	}
	repo2, err := inst.EnsureRepo()
	if err != nil {
		t.Fatalf("EnsureRepo second call: %v", err)
	}
	if repo1 != repo2 {
		t.Error("expected EnsureRepo to return the same repository on subsequent calls")
	}
}

func TestEnsureRepoOpensExisting(t *testing.T) {
	root := t.TempDir()

	seed := objectrepo.New(filepath.Join(root, "repo"), nil)
	if err := seed.Create(objectrepo.Bare); err != nil {
		t.Fatalf("seed Create: %v", err)
	}
	checksum, err := seed.PutObject('B', []byte("pre-existing"))
	if err != nil {
		t.Fatalf("seed PutObject: %v", err)
	}

	inst := New(root, false, nil)
	repo, err := inst.EnsureRepo()
	if err != nil {
		t.Fatalf("EnsureRepo: %v", err)
	}
	if !repo.HasObject(checksum) {
		t.Error("EnsureRepo should have opened the pre-existing repository, not recreated it")
	}
}

// TestEnsurePathIgnoresUserFlagForMode verifies that EnsurePath applies the
// same umask-derived mode (0777 minus umask) regardless of the user/system
// flag — that split only governs the repository mode, not the root directory.
func TestEnsurePathIgnoresUserFlagForMode(t *testing.T) {
	root := t.TempDir()
	mask := unix.Umask(0)
	unix.Umask(mask)

	systemInst := New(filepath.Join(root, "system-root"), false, nil)
	if err := systemInst.EnsurePath(); err != nil {
		t.Fatalf("EnsurePath (system): %v", err)
	}
	userInst := New(filepath.Join(root, "user-root"), true, nil)
	if err := userInst.EnsurePath(); err != nil {
		t.Fatalf("EnsurePath (user): %v", err)
	}

	want := os.FileMode(0o777) &^ os.FileMode(mask)
	for _, inst := range []*Installation{systemInst, userInst} {
		info, err := os.Stat(inst.Layout().Root)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if info.Mode().Perm() != want {
			t.Errorf("mode = %o, want %o", info.Mode().Perm(), want)
		}
	}
}

func TestGetDispatchesOnUserFlag(t *testing.T) {
	opts := config.Default()
	opts.SystemDir = t.TempDir()

	inst, err := Get(false, opts, nil)
	if err != nil {
		t.Fatalf("Get(false): %v", err)
	}
	if inst.IsUser() {
		t.Error("Get(false) should return the system installation")
	}
}
