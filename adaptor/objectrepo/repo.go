package objectrepo

import (
	"context"
	"errors"
)

// ErrNotFound is returned by ResolveRev and ReadCommit when the requested
// ref or commit is not present in the local store.
var ErrNotFound = errors.New("objectrepo: not found")

// Repository is the repository-handle interface. DiskRepo is this module's
// only implementation; the engines and remote backends take *DiskRepo
// directly, and no caller in the module is written against this interface.
type Repository interface {
	// Create initializes an empty repository at the configured root.
	Create(mode Mode) error
	// Open verifies a repository already exists at the configured root.
	Open() error

	// ResolveRev reads the tip commit checksum for refKey (a
	// type/name/arch/branch string) from refs/heads. Returns ErrNotFound if
	// no tip is recorded.
	ResolveRev(refKey string) (string, error)
	// SetRefTip records checksum as the tip commit for refKey. Used by pull
	// to advance a ref after fetching new commits.
	SetRefTip(refKey, checksum string) error

	// ReadCommit reads a commit and its root tree. Returns ErrNotFound if
	// the commit object is absent locally.
	ReadCommit(checksum string) (Commit, Tree, error)
	// ReadTree reads a tree object by checksum.
	ReadTree(checksum string) (Tree, error)

	// CheckoutTree reconstructs tree at dest. Any pre-existing entry at a
	// destination path is a collision and fails the checkout; on any
	// failure dest is removed before the error is returned.
	CheckoutTree(ctx context.Context, mode CheckoutMode, dest string, tree Tree) error

	// Prune deletes every loose object not reachable from some ref tip,
	// returning (total objects, pruned objects, bytes freed).
	Prune(ctx context.Context) (total, pruned int, freedBytes int64, err error)

	// HasObject reports whether checksum already exists locally, used by
	// remote backends to skip objects they already have.
	HasObject(checksum string) bool
	// PutObject computes the checksum of payload and stores it as kind,
	// returning the checksum. Used when building objects locally (tests).
	PutObject(kind byte, payload []byte) (checksum string, err error)
	// PutEncodedObject stores an already-encoded loose object (tag +
	// gzip(payload)) exactly as given after verifying its checksum matches
	// payload's hash. Used by remote backends that transfer objects
	// byte-for-byte in their on-disk form.
	PutEncodedObject(checksum string, encoded []byte) error
	// ReadEncodedObject returns the on-disk bytes (tag + gzip(payload)) for
	// checksum, used when bundling objects for transfer.
	ReadEncodedObject(checksum string) ([]byte, error)
}
