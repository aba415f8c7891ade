package objectrepo

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/gurre/xdgapp-deploy/adaptor/filesystem"
)

const (
	kindCommit  byte = 'C'
	kindTree    byte = 'T'
	kindBlob    byte = 'B'
	kindSymlink byte = 'S'
)

// DiskRepo stores commits, trees, blobs, and symlink targets as loose,
// content-addressed, gzip-compressed objects under root/objects, with ref
// tips as plain text files under root/refs/heads.
type DiskRepo struct {
	root   string
	logger *slog.Logger
	fs     *filesystem.Operator
}

// New returns a DiskRepo rooted at root (typically layout.Layout.RepoDir()).
//
//	repo := objectrepo.New(l.RepoDir(), slog.Default())
//	if err := repo.Open(); err != nil { ... }
func New(root string, logger *slog.Logger) *DiskRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiskRepo{root: root, logger: logger, fs: filesystem.NewOperator()}
}

func (r *DiskRepo) objectsDir() string { return filepath.Join(r.root, "objects") }
func (r *DiskRepo) refsDir() string    { return filepath.Join(r.root, "refs", "heads") }

func (r *DiskRepo) objectPath(checksum string) string {
	return filepath.Join(r.objectsDir(), checksum[:2], checksum[2:])
}

// Create initializes objects/ and refs/ with permissions matching mode.
func (r *DiskRepo) Create(mode Mode) error {
	dirMode := os.FileMode(0o755)
	if mode == BareUser {
		dirMode = 0o700
	}
	if err := os.MkdirAll(r.objectsDir(), dirMode); err != nil {
		return fmt.Errorf("objectrepo: create %s: %w", r.objectsDir(), err)
	}
	if err := os.MkdirAll(r.refsDir(), dirMode); err != nil {
		return fmt.Errorf("objectrepo: create %s: %w", r.refsDir(), err)
	}
	return nil
}

// Open verifies objects/ already exists.
func (r *DiskRepo) Open() error {
	if _, err := os.Stat(r.objectsDir()); err != nil {
		return fmt.Errorf("objectrepo: open %s: %w", r.root, err)
	}
	return nil
}

func (r *DiskRepo) refPath(refKey string) string {
	return filepath.Join(r.refsDir(), refKey)
}

// ResolveRev reads the tip commit checksum recorded for refKey.
func (r *DiskRepo) ResolveRev(refKey string) (string, error) {
	data, err := os.ReadFile(r.refPath(refKey))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("objectrepo: resolve %s: %w", refKey, err)
	}
	return string(bytes.TrimSpace(data)), nil
}

// SetRefTip records checksum as refKey's tip commit.
func (r *DiskRepo) SetRefTip(refKey, checksum string) error {
	path := r.refPath(refKey)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("objectrepo: mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(checksum), 0o644); err != nil {
		return fmt.Errorf("objectrepo: set ref %s: %w", refKey, err)
	}
	return nil
}

// HasObject reports whether checksum is already stored locally.
func (r *DiskRepo) HasObject(checksum string) bool {
	_, err := os.Stat(r.objectPath(checksum))
	return err == nil
}

func checksumOf(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func encodeObject(kind byte, payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(kind)
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeObject(data []byte) (kind byte, payload []byte, err error) {
	if len(data) < 1 {
		return 0, nil, fmt.Errorf("objectrepo: empty object")
	}
	kind = data[0]
	gz, err := gzip.NewReader(bytes.NewReader(data[1:]))
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = gz.Close() }()
	payload, err = io.ReadAll(gz)
	if err != nil {
		return 0, nil, err
	}
	return kind, payload, nil
}

// PutObject stores payload as kind, keyed by sha256(payload).
func (r *DiskRepo) PutObject(kind byte, payload []byte) (string, error) {
	checksum := checksumOf(payload)
	encoded, err := encodeObject(kind, payload)
	if err != nil {
		return "", fmt.Errorf("objectrepo: encode: %w", err)
	}
	if err := r.PutEncodedObject(checksum, encoded); err != nil {
		return "", err
	}
	return checksum, nil
}

// PutEncodedObject writes an already-encoded loose object, verifying its
// payload hashes to checksum before trusting it.
func (r *DiskRepo) PutEncodedObject(checksum string, encoded []byte) error {
	_, payload, err := decodeObject(encoded)
	if err != nil {
		return fmt.Errorf("objectrepo: decode %s: %w", checksum, err)
	}
	if got := checksumOf(payload); got != checksum {
		return fmt.Errorf("objectrepo: checksum mismatch for %s: got %s", checksum, got)
	}

	path := r.objectPath(checksum)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("objectrepo: mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("objectrepo: write %s: %w", checksum, err)
	}
	return nil
}

// ReadEncodedObject returns the on-disk bytes for checksum.
func (r *DiskRepo) ReadEncodedObject(checksum string) ([]byte, error) {
	data, err := os.ReadFile(r.objectPath(checksum))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("objectrepo: read %s: %w", checksum, err)
	}
	return data, nil
}

func (r *DiskRepo) readPayload(checksum string) (byte, []byte, error) {
	encoded, err := r.ReadEncodedObject(checksum)
	if err != nil {
		return 0, nil, err
	}
	return decodeObject(encoded)
}

// ReadTree reads and JSON-decodes a tree object.
func (r *DiskRepo) ReadTree(checksum string) (Tree, error) {
	kind, payload, err := r.readPayload(checksum)
	if err != nil {
		return Tree{}, err
	}
	if kind != kindTree {
		return Tree{}, fmt.Errorf("objectrepo: %s: expected tree, got kind %q", checksum, kind)
	}
	var tree Tree
	if err := json.Unmarshal(payload, &tree); err != nil {
		return Tree{}, fmt.Errorf("objectrepo: decode tree %s: %w", checksum, err)
	}
	return tree, nil
}

// ReadCommit reads a commit object and its root tree.
func (r *DiskRepo) ReadCommit(checksum string) (Commit, Tree, error) {
	kind, payload, err := r.readPayload(checksum)
	if err != nil {
		return Commit{}, Tree{}, err
	}
	if kind != kindCommit {
		return Commit{}, Tree{}, fmt.Errorf("objectrepo: %s: expected commit, got kind %q", checksum, kind)
	}
	var commit Commit
	if err := json.Unmarshal(payload, &commit); err != nil {
		return Commit{}, Tree{}, fmt.Errorf("objectrepo: decode commit %s: %w", checksum, err)
	}
	tree, err := r.ReadTree(commit.Root)
	if err != nil {
		return Commit{}, Tree{}, err
	}
	return commit, tree, nil
}

// ReadCommitOnly reads and decodes a commit object without requiring its
// root tree to already be present locally, used while a remote backend is
// still walking the object graph a commit depends on.
func (r *DiskRepo) ReadCommitOnly(checksum string) (Commit, error) {
	kind, payload, err := r.readPayload(checksum)
	if err != nil {
		return Commit{}, err
	}
	if kind != kindCommit {
		return Commit{}, fmt.Errorf("objectrepo: %s: expected commit, got kind %q", checksum, kind)
	}
	var commit Commit
	if err := json.Unmarshal(payload, &commit); err != nil {
		return Commit{}, fmt.Errorf("objectrepo: decode commit %s: %w", checksum, err)
	}
	return commit, nil
}

// PutTree JSON-encodes and stores a tree object.
func (r *DiskRepo) PutTree(tree Tree) (string, error) {
	payload, err := json.Marshal(tree)
	if err != nil {
		return "", fmt.Errorf("objectrepo: encode tree: %w", err)
	}
	return r.PutObject(kindTree, payload)
}

// PutCommit JSON-encodes and stores a commit object.
func (r *DiskRepo) PutCommit(commit Commit) (string, error) {
	payload, err := json.Marshal(commit)
	if err != nil {
		return "", fmt.Errorf("objectrepo: encode commit: %w", err)
	}
	return r.PutObject(kindCommit, payload)
}

// CheckoutTree reconstructs tree at dest. dest must not already exist; on
// any failure the partially-populated dest is removed, giving the
// all-or-nothing checkout property the engine relies on.
func (r *DiskRepo) CheckoutTree(ctx context.Context, mode CheckoutMode, dest string, tree Tree) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("objectrepo: checkout %s: already exists", dest)
	}

	dirMode := os.FileMode(0o755)
	if mode == CheckoutUser {
		dirMode = 0o700
	}
	if err := os.MkdirAll(dest, dirMode); err != nil {
		return fmt.Errorf("objectrepo: mkdir %s: %w", dest, err)
	}

	if err := r.checkoutTreeInto(ctx, dest, tree); err != nil {
		_ = r.fs.RemoveAll(dest)
		return err
	}
	return nil
}

func (r *DiskRepo) checkoutTreeInto(ctx context.Context, dest string, tree Tree) error {
	for _, entry := range tree.Entries {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("objectrepo: checkout cancelled: %w", err)
		}

		target := filepath.Join(dest, entry.Name)
		switch entry.Kind {
		case KindDir:
			sub, err := r.ReadTree(entry.Checksum)
			if err != nil {
				return fmt.Errorf("objectrepo: read dir %s: %w", entry.Name, err)
			}
			if err := r.fs.Mkdir(target, 0o755); err != nil {
				return fmt.Errorf("objectrepo: mkdir %s: %w", target, err)
			}
			if err := r.checkoutTreeInto(ctx, target, sub); err != nil {
				return err
			}
		case KindFile:
			kind, payload, err := r.readPayload(entry.Checksum)
			if err != nil {
				return fmt.Errorf("objectrepo: read file %s: %w", entry.Name, err)
			}
			if kind != kindBlob {
				return fmt.Errorf("objectrepo: %s: expected blob, got kind %q", entry.Name, kind)
			}
			mode := os.FileMode(entry.Mode)
			if mode == 0 {
				mode = 0o644
			}
			if err := os.WriteFile(target, payload, mode); err != nil {
				return fmt.Errorf("objectrepo: write %s: %w", target, err)
			}
		case KindSymlink:
			kind, payload, err := r.readPayload(entry.Checksum)
			if err != nil {
				return fmt.Errorf("objectrepo: read symlink %s: %w", entry.Name, err)
			}
			if kind != kindSymlink {
				return fmt.Errorf("objectrepo: %s: expected symlink target, got kind %q", entry.Name, kind)
			}
			if err := os.Symlink(string(payload), target); err != nil {
				return fmt.Errorf("objectrepo: symlink %s: %w", target, err)
			}
		default:
			return fmt.Errorf("objectrepo: %s: unknown entry kind %q", entry.Name, entry.Kind)
		}
	}
	return nil
}

// Prune deletes every loose object unreachable from any ref tip.
func (r *DiskRepo) Prune(ctx context.Context) (total, pruned int, freedBytes int64, err error) {
	reachable, err := r.reachableObjects(ctx)
	if err != nil {
		return 0, 0, 0, err
	}

	err = filepath.WalkDir(r.objectsDir(), func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		total++
		checksum := filepath.Base(filepath.Dir(path)) + filepath.Base(path)
		if reachable[checksum] {
			return nil
		}
		info, statErr := d.Info()
		if statErr == nil {
			freedBytes += info.Size()
		}
		if rmErr := r.fs.Remove(path); rmErr == nil {
			pruned++
		}
		return nil
	})
	if err != nil {
		return total, pruned, freedBytes, fmt.Errorf("objectrepo: prune: %w", err)
	}

	r.logger.Debug("prune complete", "total", total, "pruned", pruned, "freedBytes", freedBytes)
	return total, pruned, freedBytes, nil
}

func (r *DiskRepo) reachableObjects(ctx context.Context) (map[string]bool, error) {
	reachable := make(map[string]bool)

	err := filepath.WalkDir(r.refsDir(), func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		tip := string(bytes.TrimSpace(data))
		if tip == "" {
			return nil
		}
		return r.markReachableFromCommit(ctx, tip, reachable)
	})
	if err != nil {
		return nil, fmt.Errorf("objectrepo: walk refs: %w", err)
	}
	return reachable, nil
}

func (r *DiskRepo) markReachableFromCommit(ctx context.Context, checksum string, seen map[string]bool) error {
	if seen[checksum] {
		return nil
	}
	seen[checksum] = true

	kind, payload, err := r.readPayload(checksum)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}
	if kind != kindCommit {
		return fmt.Errorf("objectrepo: %s: expected commit during prune, got kind %q", checksum, kind)
	}
	var commit Commit
	if err := json.Unmarshal(payload, &commit); err != nil {
		return fmt.Errorf("objectrepo: decode commit %s: %w", checksum, err)
	}

	if err := r.markReachableFromTree(ctx, commit.Root, seen); err != nil {
		return err
	}
	if commit.Parent != "" {
		return r.markReachableFromCommit(ctx, commit.Parent, seen)
	}
	return nil
}

func (r *DiskRepo) markReachableFromTree(ctx context.Context, checksum string, seen map[string]bool) error {
	if checksum == "" || seen[checksum] {
		return nil
	}
	seen[checksum] = true

	if err := ctx.Err(); err != nil {
		return err
	}

	tree, err := r.ReadTree(checksum)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}
	for _, entry := range tree.Entries {
		seen[entry.Checksum] = true
		if entry.Kind == KindDir {
			if err := r.markReachableFromTree(ctx, entry.Checksum, seen); err != nil {
				return err
			}
		}
	}
	return nil
}
