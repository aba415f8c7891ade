package objectrepo

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
)

// bundleObjects builds the commits/{checksum}.tar.gz payload an HTTPS
// remote serves: every loose object reachable from commitChecksum, as tar
// entries named objects/{sha[:2]}/{sha[2:]}.
func bundleObjects(t *testing.T, repo *DiskRepo, commitChecksum string) []byte {
	t.Helper()

	seen := map[string]bool{}
	var collect func(checksum string) error
	collect = func(checksum string) error {
		if checksum == "" || seen[checksum] {
			return nil
		}
		seen[checksum] = true
		return nil
	}

	commit, tree, err := repo.ReadCommit(commitChecksum)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	_ = collect(commitChecksum)
	_ = collect(commit.Root)

	var walkTree func(tree Tree) error
	walkTree = func(tree Tree) error {
		for _, e := range tree.Entries {
			_ = collect(e.Checksum)
			if e.Kind == KindDir {
				sub, err := repo.ReadTree(e.Checksum)
				if err != nil {
					return err
				}
				if err := walkTree(sub); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walkTree(tree); err != nil {
		t.Fatalf("walkTree: %v", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for checksum := range seen {
		encoded, err := repo.ReadEncodedObject(checksum)
		if err != nil {
			t.Fatalf("ReadEncodedObject %s: %v", checksum, err)
		}
		name := fmt.Sprintf("objects/%s/%s", checksum[:2], checksum[2:])
		if err := tw.WriteHeader(&tar.Header{Name: name, Size: int64(len(encoded)), Mode: 0o644, Typeflag: tar.TypeReg}); err != nil {
			t.Fatalf("tar header: %v", err)
		}
		if _, err := tw.Write(encoded); err != nil {
			t.Fatalf("tar write: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

// TestHTTPSRemoteFetchUnpacksBundle verifies a successful single-request
// fetch stores every object from the served tarball.
func TestHTTPSRemoteFetchUnpacksBundle(t *testing.T) {
	root := t.TempDir()
	source := New(filepath.Join(root, "source"), nil)
	if err := source.Create(Bare); err != nil {
		t.Fatal(err)
	}
	commitChecksum := buildSampleCommit(t, source)
	bundle := bundleObjects(t, source, commitChecksum)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/gzip")
		_, _ = w.Write(bundle)
	}))
	defer server.Close()

	dest := New(filepath.Join(root, "dest"), nil)
	if err := dest.Create(Bare); err != nil {
		t.Fatal(err)
	}

	remote := NewHTTPSRemote(server.URL, nil, 2, time.Millisecond, 10*time.Millisecond)
	if err := remote.Fetch(context.Background(), dest, commitChecksum, nil); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if _, _, err := dest.ReadCommit(commitChecksum); err != nil {
		t.Fatalf("ReadCommit on dest after fetch: %v", err)
	}
}

// TestHTTPSRemoteFetchRetriesOnTransientFailure verifies that a server
// returning errors on its first calls still succeeds once it recovers
// within the retry budget.
func TestHTTPSRemoteFetchRetriesOnTransientFailure(t *testing.T) {
	root := t.TempDir()
	source := New(filepath.Join(root, "source"), nil)
	if err := source.Create(Bare); err != nil {
		t.Fatal(err)
	}
	commitChecksum := buildSampleCommit(t, source)
	bundle := bundleObjects(t, source, commitChecksum)

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(bundle)
	}))
	defer server.Close()

	dest := New(filepath.Join(root, "dest"), nil)
	if err := dest.Create(Bare); err != nil {
		t.Fatal(err)
	}

	remote := NewHTTPSRemote(server.URL, nil, 3, time.Millisecond, 5*time.Millisecond)
	if err := remote.Fetch(context.Background(), dest, commitChecksum, nil); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

// TestHTTPSRemoteFetchExhaustsRetries verifies a persistently failing
// server returns an error after the configured retry budget.
func TestHTTPSRemoteFetchExhaustsRetries(t *testing.T) {
	root := t.TempDir()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dest := New(filepath.Join(root, "dest"), nil)
	if err := dest.Create(Bare); err != nil {
		t.Fatal(err)
	}

	remote := NewHTTPSRemote(server.URL, nil, 2, time.Millisecond, 2*time.Millisecond)
	err := remote.Fetch(context.Background(), dest, "deadbeef", nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}
