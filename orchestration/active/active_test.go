package active

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gurre/xdgapp-deploy/adaptor/filesystem"
	"github.com/gurre/xdgapp-deploy/logic/ref"
	"github.com/gurre/xdgapp-deploy/state/layout"
)

func testRef() ref.Ref {
	return ref.Ref{Type: ref.App, Name: "org.example.Hello", Arch: "x86_64", Branch: "stable"}
}

func TestReadActiveMissingReturnsNotOK(t *testing.T) {
	l := layout.New(t.TempDir())
	m := NewManager(filesystem.NewOperator())

	_, ok, err := m.ReadActive(l, testRef())
	if err != nil {
		t.Fatalf("ReadActive: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing active link")
	}
}

func TestSetActiveThenReadActive(t *testing.T) {
	l := layout.New(t.TempDir())
	r := testRef()
	if err := os.MkdirAll(l.DeployBase(r), 0o755); err != nil {
		t.Fatal(err)
	}
	m := NewManager(filesystem.NewOperator())

	checksum := "abc123"
	if err := m.SetActive(l, r, checksum); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	got, ok, err := m.ReadActive(l, r)
	if err != nil || !ok {
		t.Fatalf("ReadActive: %q %v %v", got, ok, err)
	}
	if got != checksum {
		t.Errorf("got %q, want %q", got, checksum)
	}
}

func TestSetActiveRepointsExisting(t *testing.T) {
	l := layout.New(t.TempDir())
	r := testRef()
	if err := os.MkdirAll(l.DeployBase(r), 0o755); err != nil {
		t.Fatal(err)
	}
	m := NewManager(filesystem.NewOperator())

	if err := m.SetActive(l, r, "first"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetActive(l, r, "second"); err != nil {
		t.Fatalf("SetActive repoint: %v", err)
	}

	got, ok, err := m.ReadActive(l, r)
	if err != nil || !ok || got != "second" {
		t.Fatalf("got %q, %v, %v", got, ok, err)
	}
}

func TestSetActiveEmptyClearsPointer(t *testing.T) {
	l := layout.New(t.TempDir())
	r := testRef()
	if err := os.MkdirAll(l.DeployBase(r), 0o755); err != nil {
		t.Fatal(err)
	}
	m := NewManager(filesystem.NewOperator())

	if err := m.SetActive(l, r, "first"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetActive(l, r, ""); err != nil {
		t.Fatalf("SetActive clear: %v", err)
	}

	_, ok, err := m.ReadActive(l, r)
	if err != nil {
		t.Fatalf("ReadActive: %v", err)
	}
	if ok {
		t.Error("expected active pointer to be cleared")
	}
}

func TestSetActiveClearMissingIsNoOp(t *testing.T) {
	l := layout.New(t.TempDir())
	r := testRef()
	if err := os.MkdirAll(l.DeployBase(r), 0o755); err != nil {
		t.Fatal(err)
	}
	m := NewManager(filesystem.NewOperator())

	if err := m.SetActive(l, r, ""); err != nil {
		t.Fatalf("SetActive clear on missing link: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(l.DeployBase(r), "active")); !os.IsNotExist(err) {
		t.Error("expected no active link to exist")
	}
}
