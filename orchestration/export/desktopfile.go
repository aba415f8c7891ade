package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gurre/xdgapp-deploy/adaptor/keyfile"
	"github.com/gurre/xdgapp-deploy/adaptor/shellword"
	"github.com/gurre/xdgapp-deploy/state/xdgerr"
)

// rewriteDesktopFile rewrites a .desktop or .service file in place so its
// Exec= line (in every group) invokes the sandboxed launcher instead of the
// bundled binary directly. The rewrite is a fixed point: running it again on
// its own output changes nothing.
func (t *Transformer) rewriteDesktopFile(path, app, branch, arch string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return xdgerr.NewPath(xdgerr.IO, "read export file", path, err)
	}

	kf, err := keyfile.Load(data)
	if err != nil {
		return xdgerr.NewPath(xdgerr.IO, "parse key-file", path, err)
	}

	if strings.HasSuffix(path, ".service") {
		expected := strings.TrimSuffix(filepath.Base(path), ".service")
		name, ok := kf.Get("D-BUS Service", "Name")
		if !ok || name != expected {
			return xdgerr.NewPath(xdgerr.Validation, fmt.Sprintf("dbus service file has wrong name (want %q)", expected), path, nil)
		}
	}

	for _, group := range kf.Groups() {
		kf.Remove(group, "TryExec")
		kf.Remove(group, "X-GNOME-Bugzilla-ExtraInfoScript")

		newExec := fmt.Sprintf("%s/%s run --branch=%s --arch=%s", t.opts.BinDir, t.opts.LauncherName, shellword.Quote(branch), shellword.Quote(arch))

		oldExec, hasExec := kf.Get(group, "Exec")
		// An Exec already in the launcher's form is left as it is, so a
		// second pass over a rewritten file changes nothing.
		if hasExec && strings.HasPrefix(oldExec, newExec+" ") {
			continue
		}
		argv, splitErr := shellword.Split(oldExec)
		if hasExec && splitErr == nil && len(argv) >= 1 {
			newExec += " --command=" + shellword.Quote(argv[0])
			newExec += " " + shellword.Quote(app)
			for _, arg := range argv[1:] {
				newExec += " " + shellword.Quote(arg)
			}
		} else {
			newExec += " " + shellword.Quote(app)
		}

		kf.Set(group, "Exec", newExec)
	}

	out, err := kf.Bytes()
	if err != nil {
		return xdgerr.NewPath(xdgerr.IO, "serialize key-file", path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return xdgerr.NewPath(xdgerr.IO, "create temp export file", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return xdgerr.NewPath(xdgerr.IO, "write temp export file", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return xdgerr.NewPath(xdgerr.IO, "close temp export file", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o755); err != nil {
		_ = os.Remove(tmpName)
		return xdgerr.NewPath(xdgerr.IO, "chmod temp export file", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return xdgerr.NewPath(xdgerr.IO, "rename temp export file", path, err)
	}
	return nil
}
