// Package objectrepo is the module's one concrete implementation of the
// Repository interface: commits, trees, and blobs stored as loose,
// content-addressed, gzip-compressed files under repo/objects, with ref tips
// under repo/refs/heads. The engines that call it use the concrete DiskRepo
// type.
package objectrepo

// Mode selects the permission profile a repository is created with.
type Mode int

const (
	// Bare is used for system installations.
	Bare Mode = iota
	// BareUser is used for user installations (mode 0700 directories).
	BareUser
)

// CheckoutMode selects the metadata profile a checkout is created with.
// This reference implementation does not track POSIX uid/gid/xattrs beyond
// the mode bits already on checked-out files, so the two modes only affect
// which mode bits get set on the checkout root.
type CheckoutMode int

const (
	CheckoutBare CheckoutMode = iota
	CheckoutUser
)

// EntryKind classifies a TreeEntry.
type EntryKind string

const (
	KindDir     EntryKind = "dir"
	KindFile    EntryKind = "file"
	KindSymlink EntryKind = "symlink"
)

// TreeEntry is one child of a Tree: a subdirectory, a regular file, or a
// symlink. Dir and File entries reference a child object by Checksum;
// Symlink entries reference a symlink-target record holding the raw target
// path.
type TreeEntry struct {
	Name     string    `json:"name"`
	Kind     EntryKind `json:"kind"`
	Mode     uint32    `json:"mode,omitempty"`
	Checksum string    `json:"checksum,omitempty"`
}

// Tree is the decoded form of a tree object: the entries of one directory level.
type Tree struct {
	Entries []TreeEntry `json:"entries"`
}

// Commit is the decoded form of a commit object.
type Commit struct {
	Root      string `json:"root"`
	Parent    string `json:"parent,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message,omitempty"`
}
