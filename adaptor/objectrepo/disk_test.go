package objectrepo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// buildSampleCommit creates a small commit graph: root/hello.txt,
// root/link -> hello.txt, root/sub/nested.txt. Returns the commit checksum.
func buildSampleCommit(t *testing.T, repo *DiskRepo) string {
	t.Helper()

	helloChecksum, err := repo.PutObject(kindBlob, []byte("hi"))
	if err != nil {
		t.Fatalf("PutObject hello: %v", err)
	}
	linkChecksum, err := repo.PutObject(kindSymlink, []byte("hello.txt"))
	if err != nil {
		t.Fatalf("PutObject link: %v", err)
	}
	nestedChecksum, err := repo.PutObject(kindBlob, []byte("nested"))
	if err != nil {
		t.Fatalf("PutObject nested: %v", err)
	}

	subTree := Tree{Entries: []TreeEntry{
		{Name: "nested.txt", Kind: KindFile, Mode: 0o644, Checksum: nestedChecksum},
	}}
	subChecksum, err := repo.PutTree(subTree)
	if err != nil {
		t.Fatalf("PutTree sub: %v", err)
	}

	rootTree := Tree{Entries: []TreeEntry{
		{Name: "hello.txt", Kind: KindFile, Mode: 0o644, Checksum: helloChecksum},
		{Name: "link", Kind: KindSymlink, Checksum: linkChecksum},
		{Name: "sub", Kind: KindDir, Checksum: subChecksum},
	}}
	rootChecksum, err := repo.PutTree(rootTree)
	if err != nil {
		t.Fatalf("PutTree root: %v", err)
	}

	commitChecksum, err := repo.PutCommit(Commit{Root: rootChecksum, Timestamp: 1})
	if err != nil {
		t.Fatalf("PutCommit: %v", err)
	}
	return commitChecksum
}

// TestCheckoutTreeReconstructsFilesAndSymlinks verifies that checkout
// recreates regular files with their stored mode and symlinks with their
// stored target.
func TestCheckoutTreeReconstructsFilesAndSymlinks(t *testing.T) {
	root := t.TempDir()
	repo := New(filepath.Join(root, "repo"), nil)
	if err := repo.Create(Bare); err != nil {
		t.Fatalf("Create: %v", err)
	}

	commitChecksum := buildSampleCommit(t, repo)
	_, tree, err := repo.ReadCommit(commitChecksum)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}

	dest := filepath.Join(root, "checkout")
	if err := repo.CheckoutTree(context.Background(), CheckoutBare, dest, tree); err != nil {
		t.Fatalf("CheckoutTree: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "hello.txt"))
	if err != nil || string(data) != "hi" {
		t.Errorf("hello.txt = %q, %v", data, err)
	}
	nested, err := os.ReadFile(filepath.Join(dest, "sub", "nested.txt"))
	if err != nil || string(nested) != "nested" {
		t.Errorf("sub/nested.txt = %q, %v", nested, err)
	}
	target, err := os.Readlink(filepath.Join(dest, "link"))
	if err != nil || target != "hello.txt" {
		t.Errorf("link target = %q, %v", target, err)
	}
}

// TestCheckoutTreeFailsOnExistingDest verifies the all-or-nothing checkout
// contract: a pre-existing destination is itself a collision.
func TestCheckoutTreeFailsOnExistingDest(t *testing.T) {
	root := t.TempDir()
	repo := New(filepath.Join(root, "repo"), nil)
	if err := repo.Create(Bare); err != nil {
		t.Fatal(err)
	}
	commitChecksum := buildSampleCommit(t, repo)
	_, tree, err := repo.ReadCommit(commitChecksum)
	if err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(root, "checkout")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := repo.CheckoutTree(context.Background(), CheckoutBare, dest, tree); err == nil {
		t.Fatal("expected error for existing destination")
	}
}

// TestCheckoutTreeTeardownOnFailure verifies that a checkout that fails
// partway removes the partially-populated destination, so no partial state
// is ever observable at the checkout's final path.
func TestCheckoutTreeTeardownOnFailure(t *testing.T) {
	root := t.TempDir()
	repo := New(filepath.Join(root, "repo"), nil)
	if err := repo.Create(Bare); err != nil {
		t.Fatal(err)
	}

	// Reference a tree checksum that was never stored, forcing a failure
	// partway through checkout.
	tree := Tree{Entries: []TreeEntry{
		{Name: "a.txt", Kind: KindFile, Mode: 0o644, Checksum: "0000000000000000000000000000000000000000000000000000000000000000"},
	}}

	dest := filepath.Join(root, "checkout")
	if err := repo.CheckoutTree(context.Background(), CheckoutBare, dest, tree); err == nil {
		t.Fatal("expected error for missing blob object")
	}

	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("destination should be removed after failed checkout")
	}
}

// TestPruneRemovesUnreachableObjects verifies that Prune deletes objects not
// reachable from any ref tip and keeps those that are.
func TestPruneRemovesUnreachableObjects(t *testing.T) {
	root := t.TempDir()
	repo := New(filepath.Join(root, "repo"), nil)
	if err := repo.Create(Bare); err != nil {
		t.Fatal(err)
	}

	keepCommit := buildSampleCommit(t, repo)
	if err := repo.SetRefTip("app/org.example.Hello/x86_64/stable", keepCommit); err != nil {
		t.Fatal(err)
	}

	// An orphaned blob with no ref pointing at it.
	orphanChecksum, err := repo.PutObject(kindBlob, []byte("orphan"))
	if err != nil {
		t.Fatal(err)
	}

	total, pruned, freed, err := repo.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}
	if freed <= 0 {
		t.Error("expected freedBytes > 0")
	}
	if total < pruned {
		t.Errorf("total %d should be >= pruned %d", total, pruned)
	}
	if repo.HasObject(orphanChecksum) {
		t.Error("orphan object should have been pruned")
	}
	if !repo.HasObject(keepCommit) {
		t.Error("reachable commit should survive prune")
	}
}

// TestResolveRevRoundTrip verifies SetRefTip/ResolveRev round-trip exactly.
func TestResolveRevRoundTrip(t *testing.T) {
	root := t.TempDir()
	repo := New(filepath.Join(root, "repo"), nil)
	if err := repo.Create(Bare); err != nil {
		t.Fatal(err)
	}

	if err := repo.SetRefTip("app/x/arch/branch", "deadbeef"); err != nil {
		t.Fatal(err)
	}
	got, err := repo.ResolveRev("app/x/arch/branch")
	if err != nil {
		t.Fatalf("ResolveRev: %v", err)
	}
	if got != "deadbeef" {
		t.Errorf("got %q, want deadbeef", got)
	}
}

// TestResolveRevMissingReturnsNotFound verifies the sentinel error is used
// for an unrecorded ref tip.
func TestResolveRevMissingReturnsNotFound(t *testing.T) {
	root := t.TempDir()
	repo := New(filepath.Join(root, "repo"), nil)
	if err := repo.Create(Bare); err != nil {
		t.Fatal(err)
	}

	_, err := repo.ResolveRev("app/none/arch/branch")
	if err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
