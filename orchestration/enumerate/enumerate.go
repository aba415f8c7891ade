// Package enumerate lists what an installation has deployed: checksums
// under a ref's deploy base, ref names with an active deployment, and
// whether a specific checkout (or the active one) exists.
package enumerate

import (
	"fmt"
	"os"
	"strings"

	"github.com/gurre/xdgapp-deploy/logic/ref"
	"github.com/gurre/xdgapp-deploy/state/layout"
)

// ListDeployed returns every checksum deployed under r's deploy base. Order
// is unspecified.
func ListDeployed(l layout.Layout, r ref.Ref) ([]string, error) {
	deployBase := l.DeployBase(r)
	entries, err := os.ReadDir(deployBase)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("enumerate: list %s: %w", deployBase, err)
	}

	var checksums []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !ref.IsChecksumName(entry.Name()) {
			continue
		}
		checksums = append(checksums, entry.Name())
	}
	return checksums, nil
}

// CollectDeployedRefs enumerates {root}/{type}/* and adds every entry name
// to sink that (optionally) matches namePrefix and has an active deployment
// at branch/arch. The existence check uses branch/arch ordering, which
// differs from DeployBase's arch/branch ordering, so an active link that
// exists only under DeployBase is not found; see
// state/layout.LegacyActiveCheckPath.
func CollectDeployedRefs(l layout.Layout, t ref.Type, namePrefix, branch, arch string, sink *[]string) error {
	typeDir := l.TypeDir(t)
	entries, err := os.ReadDir(typeDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("enumerate: list %s: %w", typeDir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if namePrefix != "" && !strings.HasPrefix(name, namePrefix) {
			continue
		}
		if _, err := os.Stat(l.LegacyActiveCheckPath(t, name, branch, arch)); err != nil {
			continue
		}
		*sink = append(*sink, name)
	}
	return nil
}

// GetIfDeployed returns the checkout path for r at an explicit checksum or,
// if checksum is empty, the path of r's active link itself (not resolved),
// and ok=false if that path is not a directory.
func GetIfDeployed(l layout.Layout, r ref.Ref, checksum string) (path string, ok bool, err error) {
	if checksum != "" {
		path = l.CheckoutDir(r, checksum)
	} else {
		path = l.ActiveLink(r)
	}

	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("enumerate: stat %s: %w", path, statErr)
	}
	if !info.IsDir() {
		return "", false, nil
	}
	return path, true, nil
}
