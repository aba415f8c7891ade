package objectrepo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileRemote copies loose objects byte-for-byte from another disk
// repository's object store, rooted at root (the "repo/" directory of the
// source installation, not the installation root itself). Used for tests
// and mirrored/offline installations.
type FileRemote struct {
	root   string
	logger *slog.Logger
}

// NewFileRemote constructs a file-backed remote rooted at a source repo/ directory.
func NewFileRemote(root string, logger *slog.Logger) *FileRemote {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileRemote{root: root, logger: logger}
}

// Fetch walks the object graph reachable from checksum, copying each
// missing object directly from the source repository's loose-object store.
func (f *FileRemote) Fetch(ctx context.Context, repo *DiskRepo, checksum string, progress func(string)) error {
	return f.fetchCommit(ctx, repo, checksum, progress)
}

func (f *FileRemote) sourcePath(checksum string) string {
	return filepath.Join(f.root, "objects", checksum[:2], checksum[2:])
}

func (f *FileRemote) fetchObject(repo *DiskRepo, checksum string, progress func(string)) error {
	if repo.HasObject(checksum) {
		return nil
	}
	if progress != nil {
		progress(checksum)
	}

	data, err := os.ReadFile(f.sourcePath(checksum))
	if err != nil {
		return fmt.Errorf("objectrepo: file remote read %s: %w", checksum, err)
	}
	if err := repo.PutEncodedObject(checksum, data); err != nil {
		return fmt.Errorf("objectrepo: file remote store %s: %w", checksum, err)
	}
	return nil
}

func (f *FileRemote) fetchCommit(ctx context.Context, repo *DiskRepo, checksum string, progress func(string)) error {
	if err := f.fetchObject(repo, checksum, progress); err != nil {
		return err
	}
	commit, err := repo.ReadCommitOnly(checksum)
	if err != nil {
		return err
	}
	if err := f.fetchTree(ctx, repo, commit.Root, progress); err != nil {
		return err
	}
	if commit.Parent != "" {
		return f.fetchCommit(ctx, repo, commit.Parent, progress)
	}
	return nil
}

func (f *FileRemote) fetchTree(ctx context.Context, repo *DiskRepo, checksum string, progress func(string)) error {
	if err := f.fetchObject(repo, checksum, progress); err != nil {
		return err
	}
	tree, err := repo.ReadTree(checksum)
	if err != nil {
		return err
	}
	for _, entry := range tree.Entries {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("objectrepo: file fetch cancelled: %w", err)
		}
		if entry.Kind == KindDir {
			if err := f.fetchTree(ctx, repo, entry.Checksum, progress); err != nil {
				return err
			}
			continue
		}
		if err := f.fetchObject(repo, entry.Checksum, progress); err != nil {
			return err
		}
	}
	return nil
}
